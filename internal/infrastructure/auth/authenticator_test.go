package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingBlacklist struct {
	*InMemoryTokenBlacklist
}

func (failingBlacklist) IsBlacklisted(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestAuthenticator_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	a := NewAuthenticator(svc, NewInMemoryTokenBlacklist(), zap.NewNop())
	input := newTestInput()
	token, _, err := svc.IssueToken(input)
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, input.TenantID, id.TenantID)
}

func TestAuthenticator_RevokedToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestJWTService()
	blacklist := NewInMemoryTokenBlacklist()
	a := NewAuthenticator(svc, blacklist, zap.NewNop())

	token, _, err := svc.IssueToken(newTestInput())
	require.NoError(t, err)
	id, err := a.Authenticate(ctx, token)
	require.NoError(t, err)

	require.NoError(t, a.Revoke(ctx, id))

	_, err = a.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenBlacklisted)

	other, _, err := svc.IssueToken(IssueTokenInput{TenantID: id.TenantID, UserID: id.UserID, TTL: time.Minute})
	require.NoError(t, err)
	_, err = a.Authenticate(ctx, other)
	assert.NoError(t, err, "revoking one token leaves the others alone")
}

func TestAuthenticator_UserInvalidated(t *testing.T) {
	ctx := context.Background()
	svc := newTestJWTService()
	blacklist := NewInMemoryTokenBlacklist()
	a := NewAuthenticator(svc, blacklist, zap.NewNop())

	input := newTestInput()
	token, _, err := svc.IssueToken(input)
	require.NoError(t, err)
	require.NoError(t, blacklist.AddUserTokensToBlacklist(ctx, input.UserID.String(), time.Hour))

	_, err = a.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenBlacklisted)
}

func TestAuthenticator_BlacklistFailure(t *testing.T) {
	svc := newTestJWTService()
	a := NewAuthenticator(svc, &failingBlacklist{NewInMemoryTokenBlacklist()}, nil)
	token, _, err := svc.IssueToken(newTestInput())
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenBlacklisted)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAuthenticator_WithoutBlacklist(t *testing.T) {
	svc := newTestJWTService()
	a := NewAuthenticator(svc, nil, nil)
	token, _, err := svc.IssueToken(newTestInput())
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.NoError(t, a.Revoke(context.Background(), id))
}
