package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipesnap/internal/apperr"
	"recipesnap/internal/recipe"
	"recipesnap/internal/session"
)

type sessionResponse struct {
	SessionID string         `json:"sessionId"`
	State     *session.State `json:"state"`
}

type ingredientRequest struct {
	Name string `json:"name"`
}

type dietaryRequest struct {
	Checked bool `json:"checked"`
}

// CreateSession starts an empty dashboard session.
func (h *Handler) CreateSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	id := session.NewID()
	state := &session.State{}
	if err := h.Sessions.Save(ctx, id, state); err != nil {
		writeError(c, apperr.PersistenceFailed(err))
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: id, State: state})
}

// GetSession returns the current snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	state, ok := h.loadSession(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: id, State: state})
}

// ReplaceSession overwrites the snapshot with the posted one.
func (h *Handler) ReplaceSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var state session.State
	if err := c.ShouldBindJSON(&state); err != nil {
		writeError(c, apperr.InvalidInput("invalid session state: %s", err.Error()))
		return
	}
	h.saveSession(c, id, &state)
}

// ClearSession forgets the session.
func (h *Handler) ClearSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Sessions.Clear(ctx, id); err != nil {
		writeError(c, apperr.PersistenceFailed(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddSessionIngredient adds a manually entered ingredient.
func (h *Handler) AddSessionIngredient(c *gin.Context) {
	var req ingredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}
	h.editSession(c, func(s *session.State) error {
		return s.AddIngredient(req.Name)
	})
}

// RemoveSessionIngredient removes an ingredient by name.
func (h *Handler) RemoveSessionIngredient(c *gin.Context) {
	name := c.Param("name")
	if !recipe.IsKnownDietaryRestriction(name) {
		log.Printf("session %s: unrecognized dietary restriction %q", c.GetHeader(SessionHeader), name)
	}
	h.editSession(c, func(s *session.State) error {
		s.RemoveIngredient(name)
		return nil
	})
}

// SetSessionDietary checks or unchecks a dietary restriction.
func (h *Handler) SetSessionDietary(c *gin.Context) {
	var req dietaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}
	name := c.Param("name")
	h.editSession(c, func(s *session.State) error {
		s.SetDietaryRestriction(name, req.Checked)
		return nil
	})
}

func (h *Handler) editSession(c *gin.Context, edit func(*session.State) error) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	state, ok := h.loadSession(c, id)
	if !ok {
		return
	}
	if err := edit(state); err != nil {
		writeError(c, err)
		return
	}
	h.saveSession(c, id, state)
}

func (h *Handler) loadSession(c *gin.Context, id string) (*session.State, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	state, err := h.Sessions.Load(ctx, id)
	if err != nil {
		writeError(c, apperr.PersistenceFailed(err))
		return nil, false
	}
	return state, true
}

func (h *Handler) saveSession(c *gin.Context, id string, state *session.State) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Sessions.Save(ctx, id, state); err != nil {
		writeError(c, apperr.PersistenceFailed(err))
		return
	}
	c.JSON(http.StatusOK, sessionResponse{SessionID: id, State: state})
}

// updateSession applies a change after a successful model call. Failures are logged and never fail the
// request that triggered them.
func (h *Handler) updateSession(c *gin.Context, id string, update func(*session.State)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), storeTimeout)
	defer cancel()

	state, err := h.Sessions.Load(ctx, id)
	if err != nil {
		log.Printf("failed to load session %s: %v", id, err)
		return
	}
	update(state)
	if err := h.Sessions.Save(ctx, id, state); err != nil {
		log.Printf("failed to save session %s: %v", id, err)
	}
}

func sessionID(c *gin.Context) (string, bool) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		writeError(c, apperr.InvalidInput("%s header is required", SessionHeader))
		return "", false
	}
	return id, true
}
