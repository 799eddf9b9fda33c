package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipesnap/internal/apperr"
	"recipesnap/internal/auth"
)

type googleSignInRequest struct {
	IDToken string `json:"idToken"`
}

// SignInWithGoogle exchanges a Google ID token for a session token.
func (h *Handler) SignInWithGoogle(c *gin.Context) {
	var req googleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidInput("invalid request body: %s", err.Error()))
		return
	}

	token, principal, err := h.Auth.SignInWithGoogle(c.Request.Context(), req.IDToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": principal})
}

// Me returns the signed-in user.
func (h *Handler) Me(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		writeError(c, apperr.AuthRequired("not signed in"))
		return
	}
	c.JSON(http.StatusOK, p)
}
