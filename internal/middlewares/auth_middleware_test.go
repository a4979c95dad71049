package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/automations/internal/auth"
)

func TestRequireToken(t *testing.T) {
	tokens, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", "automations")
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", RequireToken(tokens, auth.ScopeWorkflows), func(c fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	workflowToken, err := tokens.Issue("user-1", []string{auth.ScopeWorkflows}, time.Hour)
	require.NoError(t, err)

	pushToken, err := tokens.Issue("relay", []string{auth.ScopePush}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer " + workflowToken, status: http.StatusOK},
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + workflowToken, status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "wrong scope", header: "Bearer " + pushToken, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
