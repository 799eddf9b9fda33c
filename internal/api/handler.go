package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recipesnap/internal/action"
	"recipesnap/internal/apperr"
	"recipesnap/internal/auth"
	"recipesnap/internal/photo"
	"recipesnap/internal/recipe"
	"recipesnap/internal/session"
)

const (
	// DefaultAITimeout bounds a single model call.
	DefaultAITimeout = 45 * time.Second
	storeTimeout     = 5 * time.Second

	// SessionHeader carries the dashboard session id.
	SessionHeader = "X-Session-ID"
)

// Actions defines the operations the handlers expose.
type Actions interface {
	InvokeAnalyzeIngredients(ctx context.Context, photoDataURI string) action.AnalyzeResult
	InvokeSuggestRecipes(ctx context.Context, ingredients, dietaryRestrictions []string) action.SuggestResult
	AddFavorite(ctx context.Context, userID string, r recipe.RecipeSuggestion) action.MutationResult
	RemoveFavorite(ctx context.Context, userID, recipeName string) action.MutationResult
	ListFavorites(ctx context.Context, userID string) action.FavoritesResult
	GetFavorite(ctx context.Context, userID, recipeName string) action.FavoriteResult
}

// Authenticator signs users in with a Google ID token.
type Authenticator interface {
	SignInWithGoogle(ctx context.Context, idToken string) (string, *auth.Principal, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Actions   Actions
	Sessions  session.Store
	Auth      Authenticator
	AITimeout time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(actions Actions, sessions session.Store, authenticator Authenticator, aiTimeout time.Duration) *Handler {
	if aiTimeout <= 0 {
		aiTimeout = DefaultAITimeout
	}
	return &Handler{Actions: actions, Sessions: sessions, Auth: authenticator, AITimeout: aiTimeout}
}

type analyzeRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

type suggestRequest struct {
	Ingredients         []string `json:"ingredients"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
}

// AnalyzeIngredients identifies the ingredients in a photo sent either as a JSON data URI or as a
// multipart "file" upload.
func (h *Handler) AnalyzeIngredients(c *gin.Context) {
	var dataURI string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			log.Printf("Error getting form file: %v", err)
			writeError(c, apperr.InvalidInput("get form err: %s", err.Error()))
			return
		}
		p, err := readUpload(file)
		if err != nil {
			writeError(c, err)
			return
		}
		dataURI = p.DataURI()
	} else {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.InvalidInput("invalid request body: %s", err.Error()))
			return
		}
		dataURI = req.PhotoDataURI
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.AITimeout)
	defer cancel()

	res := h.Actions.InvokeAnalyzeIngredients(ctx, dataURI)
	if res.Failed() {
		c.JSON(res.Kind.StatusCode(), res.Failure)
		return
	}

	if id := c.GetHeader(SessionHeader); id != "" {
		h.updateSession(c, id, func(s *session.State) {
			s.ResetForPhoto(dataURI)
			s.Ingredients = res.Ingredients
		})
	}
	c.JSON(http.StatusOK, res)
}

// SuggestRecipes suggests recipes for the posted ingredients. When the body has no ingredient list and
// a session is given, the session's ingredients and restrictions are used.
func (h *Handler) SuggestRecipes(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}

	sessionID := c.GetHeader(SessionHeader)
	if req.Ingredients == nil && sessionID != "" {
		state, ok := h.loadSession(c, sessionID)
		if !ok {
			return
		}
		req.Ingredients = []string(state.Ingredients)
		if req.DietaryRestrictions == nil {
			req.DietaryRestrictions = state.DietaryRestrictions
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.AITimeout)
	defer cancel()

	res := h.Actions.InvokeSuggestRecipes(ctx, req.Ingredients, req.DietaryRestrictions)
	if res.Failed() {
		c.JSON(res.Kind.StatusCode(), res.Failure)
		return
	}

	if sessionID != "" {
		h.updateSession(c, sessionID, func(s *session.State) {
			s.Recipes = res.Recipes
		})
	}
	c.JSON(http.StatusOK, res)
}

// ListFavorites returns the signed-in user's favorite recipes.
func (h *Handler) ListFavorites(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	res := h.Actions.ListFavorites(ctx, auth.UserID(c))
	if res.Failed() {
		c.JSON(res.Kind.StatusCode(), res.Failure)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetFavorite returns a single favorite by recipe name.
func (h *Handler) GetFavorite(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	res := h.Actions.GetFavorite(ctx, auth.UserID(c), c.Param("name"))
	if res.Failed() {
		c.JSON(res.Kind.StatusCode(), res.Failure)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddFavorite saves the posted recipe, replacing a favorite with the same name.
func (h *Handler) AddFavorite(c *gin.Context) {
	var r recipe.RecipeSuggestion
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, action.MutationResult{Failure: action.Failure{
			Error: fmt.Sprintf("invalid request body: %s", err.Error()),
			Kind:  apperr.KindInvalidInput,
		}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	res := h.Actions.AddFavorite(ctx, auth.UserID(c), r)
	c.JSON(mutationStatus(res), res)
}

// RemoveFavorite deletes a favorite. Deleting one that does not exist succeeds.
func (h *Handler) RemoveFavorite(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	res := h.Actions.RemoveFavorite(ctx, auth.UserID(c), c.Param("name"))
	c.JSON(mutationStatus(res), res)
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func mutationStatus(res action.MutationResult) int {
	if res.Failed() {
		return res.Kind.StatusCode()
	}
	return http.StatusOK
}

func readUpload(file *multipart.FileHeader) (*photo.Photo, error) {
	src, err := file.Open()
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidInput, Message: "open file err", Cause: err}
	}
	defer src.Close()

	imageData, err := io.ReadAll(src)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidInput, Message: "read image err", Cause: err}
	}

	p, err := photo.FromUpload(file.Filename, imageData)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidInput, Message: "Invalid file type. Only JPEG, JPG, PNG and WEBP images are allowed.", Cause: err}
	}
	return p, nil
}

// writeError responds with the failure shape every endpoint uses.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(kind.StatusCode(), action.Failure{Error: err.Error(), Kind: kind})
}
