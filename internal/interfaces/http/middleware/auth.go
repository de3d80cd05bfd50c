package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdentityKey is the gin context key holding the *auth.Identity of the caller
const IdentityKey = "auth_identity"

// Auth requires a valid bearer token. The tenant and user from its claims
// are stored on the gin context and on the request context logger.
func Auth(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing or malformed Authorization header")
			return
		}

		identity, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			status, code, message := authFailure(err)
			if status >= http.StatusInternalServerError {
				logger.L(c.Request.Context()).Error("Token verification unavailable", zap.Error(err))
			}
			abortWithError(c, status, code, message)
			return
		}

		ctx := logger.WithTenant(c.Request.Context(), identity.TenantID)
		ctx = logger.WithUser(ctx, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func authFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenBlacklisted):
		return http.StatusUnauthorized, dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingTenantID),
		errors.Is(err, auth.ErrMissingUserID):
		return http.StatusUnauthorized, dto.ErrCodeTokenInvalid, "Invalid token"
	default:
		// Revocation store unreachable: refuse rather than skip the check
		return http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Authentication temporarily unavailable"
	}
}

// GetIdentity returns the authenticated caller, or nil on public routes
func GetIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

// GetTenantID returns the tenant of the authenticated caller
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	if id := GetIdentity(c); id != nil {
		return id.TenantID, true
	}
	return uuid.Nil, false
}

// GetUserID returns the authenticated user
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if id := GetIdentity(c); id != nil {
		return id.UserID, true
	}
	return uuid.Nil, false
}
