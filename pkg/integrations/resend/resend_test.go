package resendintegration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail(t *testing.T) {
	var (
		received map[string]any
		auth     string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"id": "email-1"}))
	}))
	defer server.Close()

	provider := NewProvider(integrations.ProviderDependencies{APIBaseURL: server.URL})

	output, err := provider.Executors[domain.ActionKind_ResendSendEmail].Execute(context.Background(), domain.ActionExecution{
		Kind: domain.ActionKind_ResendSendEmail,
		Config: map[string]any{
			"from":    "Alerts <alerts@example.com>",
			"to":      "ada@example.com, grace@example.com",
			"subject": "New star",
			"text":    "someone starred the repo",
		},
		Client: &domain.AuthorizedClient{Credential: domain.Credential{ID: "c1", AccessToken: "re_123"}, HTTPClient: server.Client()},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_123", auth)
	assert.Equal(t, []any{"ada@example.com", "grace@example.com"}, received["to"])
	assert.Equal(t, "New star", received["subject"])
	assert.Equal(t, "email-1", output["id"])
}

func TestNewSendEmailRequest(t *testing.T) {
	tests := []struct {
		name      string
		params    SendEmailParams
		wantField string
	}{
		{name: "valid", params: SendEmailParams{From: "a@example.com", To: "b@example.com", Subject: "s", HTML: "<p>hi</p>"}},
		{name: "no recipients", params: SendEmailParams{From: "a@example.com", To: " , ", Subject: "s", Text: "hi"}, wantField: "to"},
		{name: "no body", params: SendEmailParams{From: "a@example.com", To: "b@example.com", Subject: "s"}, wantField: "html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := newSendEmailRequest(tt.params)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, []string{"b@example.com"}, request.To)
				return
			}

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Issues[0].Field)
		})
	}
}
