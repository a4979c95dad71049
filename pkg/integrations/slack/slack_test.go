package slackintegration

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

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name           string
		response       map[string]any
		config         map[string]any
		wantForm       map[string]string
		wantCredential bool
		wantErr        bool
	}{
		{
			name:     "posts to channel",
			response: map[string]any{"ok": true, "channel": "C1", "ts": "1700000000.000100"},
			config:   map[string]any{"channel_id": "C1", "text": "Build passed"},
			wantForm: map[string]string{"channel": "C1", "text": "Build passed"},
		},
		{
			name:     "replies in thread",
			response: map[string]any{"ok": true, "channel": "C1", "ts": "1700000000.000200"},
			config:   map[string]any{"channel_id": "C1", "text": "Details", "thread_ts": "1700000000.000100", "username": "ci"},
			wantForm: map[string]string{"thread_ts": "1700000000.000100", "username": "ci"},
		},
		{
			name:           "revoked token",
			response:       map[string]any{"ok": false, "error": "token_revoked"},
			config:         map[string]any{"channel_id": "C1", "text": "hi"},
			wantErr:        true,
			wantCredential: true,
		},
		{
			name:     "unknown channel",
			response: map[string]any{"ok": false, "error": "channel_not_found"},
			config:   map[string]any{"channel_id": "C404", "text": "hi"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form map[string]string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat.postMessage", r.URL.Path)
				require.NoError(t, r.ParseForm())

				form = map[string]string{}
				for key := range r.PostForm {
					form[key] = r.PostForm.Get(key)
				}

				require.NoError(t, json.NewEncoder(w).Encode(tt.response))
			}))
			defer server.Close()

			provider := NewProvider(integrations.ProviderDependencies{APIBaseURL: server.URL})
			executor := provider.Executors[domain.ActionKind_SlackPostMessage]

			output, err := executor.Execute(context.Background(), domain.ActionExecution{
				Kind:   domain.ActionKind_SlackPostMessage,
				Config: tt.config,
				Client: &domain.AuthorizedClient{Credential: domain.Credential{ID: "c1", AccessToken: "xoxb-1"}, HTTPClient: server.Client()},
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCredential, domain.IsCredentialError(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.response["ts"], output["timestamp"])

			for key, value := range tt.wantForm {
				assert.Equal(t, value, form[key], key)
			}
		})
	}
}

func TestPostMessageRequiresCredential(t *testing.T) {
	executor := &actionExecutor{baseURL: DefaultAPIBaseURL}

	_, err := executor.Execute(context.Background(), domain.ActionExecution{Config: map[string]any{"channel_id": "C1", "text": "hi"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
