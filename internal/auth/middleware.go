package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipesnap/internal/apperr"
)

const principalKey = "principal"

// TokenValidator is an interface for validating session tokens
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// AuthMiddleware creates a middleware that rejects requests without a valid bearer token
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message, "kind": apperr.KindAuthRequired})
}

// UserID returns the id stored by AuthMiddleware, or "" when the request is anonymous.
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// PrincipalFrom returns the principal stored by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
