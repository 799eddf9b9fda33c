// Package auth signs users in with Google and issues the short-lived session tokens the favorites
// endpoints require.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"

	"recipesnap/internal/apperr"
)

// DefaultTokenTTL is the lifetime of an issued session token.
const DefaultTokenTTL = 24 * time.Hour

// Principal is the signed-in user. UserID is Google's stable subject id.
type Principal struct {
	UserID  string `json:"userId"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Claims represents the claims in a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// IDTokenValidator checks a Google ID token. *idtoken.Validator satisfies it.
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type Service struct {
	google   IDTokenValidator
	clientID string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewService(google IDTokenValidator, clientID, jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		google:   google,
		clientID: clientID,
		secret:   []byte(jwtSecret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SignInWithGoogle validates a Google ID token issued for our OAuth client and returns a session token
// for its subject.
func (s *Service) SignInWithGoogle(ctx context.Context, idToken string) (string, *Principal, error) {
	if strings.TrimSpace(idToken) == "" {
		return "", nil, apperr.InvalidInput("idToken is required")
	}
	payload, err := s.google.Validate(ctx, idToken, s.clientID)
	if err != nil {
		return "", nil, &apperr.Error{Kind: apperr.KindAuthRequired, Message: "invalid Google ID token", Cause: err}
	}
	if payload.Subject == "" {
		return "", nil, apperr.AuthRequired("Google ID token has no subject")
	}

	p := &Principal{UserID: payload.Subject}
	p.Name, _ = payload.Claims["name"].(string)
	p.Picture, _ = payload.Claims["picture"].(string)

	token, err := s.IssueToken(*p)
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

// IssueToken signs an HS256 session token for p.
func (s *Service) IssueToken(p Principal) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:  p.UserID,
		Name:    p.Name,
		Picture: p.Picture,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// ValidateToken parses a session token issued by IssueToken.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Principal returns the user the claims describe.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Name: c.Name, Picture: c.Picture}
}
