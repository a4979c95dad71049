package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenService(t *testing.T) {
	service, err := NewTokenService(testSecret, "automations")
	require.NoError(t, err)

	t.Run("issued token verifies", func(t *testing.T) {
		token, err := service.Issue("user-1", []string{ScopeWorkflows}, time.Hour)
		require.NoError(t, err)

		claims, err := service.Verify(token)
		require.NoError(t, err)

		assert.Equal(t, "user-1", claims.Subject)
		assert.True(t, claims.HasScope(ScopeWorkflows))
		assert.False(t, claims.HasScope(ScopePush))
	})

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				token, err := service.Issue("user-1", nil, -time.Minute)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "other secret",
			token: func(t *testing.T) string {
				other, err := NewTokenService("fedcba9876543210fedcba9876543210", "automations")
				require.NoError(t, err)

				token, err := other.Issue("user-1", nil, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "other issuer",
			token: func(t *testing.T) string {
				other, err := NewTokenService(testSecret, "someone-else")
				require.NoError(t, err)

				token, err := other.Issue("user-1", nil, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				token, err := service.Issue("", nil, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "no expiry",
			token: func(t *testing.T) string {
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "automations"},
				}).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return token
			},
		},
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-token" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Verify(tt.token(t))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", "automations")
	assert.Error(t, err)
}
