package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTokenBlacklist_AddToBlacklist(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.AddToBlacklist(ctx, "jti-1", time.Hour))

	revoked, err := blacklist.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_Expiration(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.AddToBlacklist(ctx, "jti-expire", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	revoked, err := blacklist.IsBlacklisted(ctx, "jti-expire")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_UserTokenInvalidation(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()
	issuedBefore := time.Now().Add(-time.Hour)

	invalidated, err := blacklist.IsUserTokenInvalidated(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, blacklist.AddUserTokensToBlacklist(ctx, "user-1", 24*time.Hour))

	invalidated, err = blacklist.IsUserTokenInvalidated(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.True(t, invalidated)

	invalidated, err = blacklist.IsUserTokenInvalidated(ctx, "user-1", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.False(t, invalidated, "tokens issued after the invalidation stay valid")

	invalidated, err = blacklist.IsUserTokenInvalidated(ctx, "user-2", issuedBefore)
	require.NoError(t, err)
	assert.False(t, invalidated)
}
