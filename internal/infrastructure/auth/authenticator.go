package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// minRevocationTTL keeps a revocation around even for tokens about to expire,
// so clock skew cannot resurrect them.
const minRevocationTTL = time.Minute

// Authenticator verifies a bearer token and checks it against the blacklist
type Authenticator struct {
	jwt       *JWTService
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthenticator creates an authenticator. blacklist may be nil.
func NewAuthenticator(jwtService *JWTService, blacklist TokenBlacklist, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{jwt: jwtService, blacklist: blacklist, logger: logger}
}

// Authenticate returns the identity behind a raw bearer token
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := a.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	if a.blacklist == nil {
		return id, nil
	}

	if id.TokenID != "" {
		revoked, err := a.blacklist.IsBlacklisted(ctx, id.TokenID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenBlacklisted
		}
	}

	invalidated, err := a.blacklist.IsUserTokenInvalidated(ctx, id.UserID.String(), id.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("check user token invalidation: %w", err)
	}
	if invalidated {
		return nil, ErrTokenBlacklisted
	}
	return id, nil
}

// Revoke blacklists the token of id until it expires
func (a *Authenticator) Revoke(ctx context.Context, id *Identity) error {
	if a.blacklist == nil || id.TokenID == "" {
		return nil
	}
	ttl := time.Until(id.ExpiresAt)
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := a.blacklist.AddToBlacklist(ctx, id.TokenID, ttl); err != nil {
		return err
	}
	a.logger.Info("Token revoked",
		zap.String("tenant_id", id.TenantID.String()),
		zap.String("user_id", id.UserID.String()),
		zap.String("jti", id.TokenID),
	)
	return nil
}
