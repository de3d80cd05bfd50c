package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:    testSecret,
		Issuer:    "test-issuer",
		ClockSkew: 5 * time.Second,
	})
}

func newTestInput() IssueTokenInput {
	return IssueTokenInput{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Username: "accountant",
		TTL:      15 * time.Minute,
	}
}

func signRaw(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()

	token, expiresAt, err := svc.IssueToken(input)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, input.TenantID, id.TenantID)
	assert.Equal(t, input.UserID, id.UserID)
	assert.Equal(t, "accountant", id.Username)
	assert.NotEmpty(t, id.TokenID)
	assert.WithinDuration(t, expiresAt, id.ExpiresAt, time.Second)
	assert.False(t, id.IssuedAt.IsZero())
}

func TestValidate_ExpiredToken(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()
	input.TTL = -time.Hour

	token, _, err := svc.IssueToken(input)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_ClockSkewTolerated(t *testing.T) {
	svc := newTestJWTService()
	input := newTestInput()
	input.TTL = -2 * time.Second

	token, _, err := svc.IssueToken(input)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.NoError(t, err, "expiry within the configured skew is accepted")
}

func TestValidate_NotYetValid(t *testing.T) {
	svc := newTestJWTService()
	future := time.Now().Add(time.Hour)
	token := signRaw(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			NotBefore: jwt.NewNumericDate(future),
			ExpiresAt: jwt.NewNumericDate(future.Add(time.Hour)),
		},
		TenantID: uuid.NewString(),
		UserID:   uuid.NewString(),
	}, testSecret)

	_, err := svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestValidate_Rejections(t *testing.T) {
	svc := newTestJWTService()
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  error
	}{
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not-a-token" },
			want:  ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: exp},
					TenantID:         uuid.NewString(),
					UserID:           uuid.NewString(),
				}, "another-secret-key-at-least-32-chars")
			},
			want: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: exp},
					TenantID:         uuid.NewString(),
					UserID:           uuid.NewString(),
				}, testSecret)
			},
			want: ErrInvalidToken,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer"},
					TenantID:         uuid.NewString(),
					UserID:           uuid.NewString(),
				}, testSecret)
			},
			want: ErrInvalidToken,
		},
		{
			name: "unsigned",
			token: func(t *testing.T) string {
				raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: exp},
					TenantID:         uuid.NewString(),
					UserID:           uuid.NewString(),
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return raw
			},
			want: ErrInvalidToken,
		},
		{
			name: "missing tenant",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: exp},
					UserID:           uuid.NewString(),
				}, testSecret)
			},
			want: ErrMissingTenantID,
		},
		{
			name: "missing user",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: exp},
					TenantID:         uuid.NewString(),
				}, testSecret)
			},
			want: ErrMissingUserID,
		},
		{
			name: "tenant is not a uuid",
			token: func(t *testing.T) string {
				return signRaw(t, &Claims{
					RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer", ExpiresAt: exp},
					TenantID:         "acme",
					UserID:           uuid.NewString(),
				}, testSecret)
			},
			want: ErrInvalidClaims,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
