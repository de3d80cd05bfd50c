package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// TokenRevoker blacklists the caller's token
type TokenRevoker interface {
	Revoke(ctx context.Context, id *auth.Identity) error
}

// AuthHandler handles session endpoints. Tokens are issued by the identity
// provider, so only logout lives here.
type AuthHandler struct {
	BaseHandler
	revoker TokenRevoker
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{revoker: revoker}
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	if err := h.revoker.Revoke(c.Request.Context(), identity); err != nil {
		logger.L(c.Request.Context()).Error("Token revocation failed", zap.Error(err))
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Could not revoke token, please retry")
		return
	}
	h.NoContent(c)
}
