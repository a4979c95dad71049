package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport sends every request to the test server, keeping the path.
type redirectTransport struct {
	target *url.URL
}

func (t redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	r.Host = t.target.Host

	return http.DefaultTransport.RoundTrip(r)
}

func redirectedClient(t *testing.T, server *httptest.Server) *http.Client {
	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	return &http.Client{Transport: redirectTransport{target: target}}
}

func message(id, content, author string) map[string]any {
	return map[string]any{
		"id":         id,
		"channel_id": "555",
		"guild_id":   "777",
		"content":    content,
		"timestamp":  "2024-05-01T10:00:00Z",
		"author":     map[string]any{"id": "42", "username": author},
	}
}

func TestMessageAdapter(t *testing.T) {
	var (
		authHeader string
		afterParam string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		afterParam = r.URL.Query().Get("after")

		assert.Equal(t, "/api/v9/channels/555/messages", r.URL.Path)

		// Discord returns newest first.
		require.NoError(t, json.NewEncoder(w).Encode([]map[string]any{
			message("1000000000000000003", "release shipped", "ada"),
			message("999999999999999999", "first", "grace"),
			message("1000000000000000002", "hello", "ada"),
		}))
	}))
	defer server.Close()

	adapter := &messageAdapter{httpClient: redirectedClient(t, server), now: time.Now}
	authorized := domain.AuthorizedClient{Credential: domain.Credential{ID: "c1", AccessToken: "bot-token"}}
	check := polling.Check{CursorKey: "discord:messages:555", Params: map[string]string{"channel_id": "555"}}

	cursor := MessageCursor{LastMessageID: "999999999999999999"}
	messages, err := adapter.Fetch(context.Background(), authorized, check, &cursor)
	require.NoError(t, err)
	assert.Equal(t, "Bot bot-token", authHeader)
	assert.Equal(t, "999999999999999999", afterParam)

	// Ordering is numeric, not lexical.
	require.Len(t, messages, 3)
	assert.Equal(t, "999999999999999999", messages[0].ID)

	fresh := adapter.Diff(cursor, messages)
	require.Len(t, fresh, 2)
	assert.Equal(t, "1000000000000000002", fresh[0].ID)
	assert.Equal(t, "1000000000000000003", fresh[1].ID)

	next := adapter.Advance(cursor, messages, fresh[:1], fresh[1:])
	assert.Equal(t, "1000000000000000002", next.LastMessageID)

	target := polling.Target{Config: map[string]any{"channel_id": "555", "content": "RELEASE"}}
	assert.False(t, adapter.Matches(fresh[0], target))
	assert.True(t, adapter.Matches(fresh[1], target))

	payload := adapter.Payload(fresh[1])
	assert.Equal(t, "ada", payload["author"])
	assert.Equal(t, "777", payload["guild_id"])
}

func TestMessageAdapterSeed(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	adapter := &messageAdapter{now: func() time.Time { return now }}

	seeded := adapter.Seed(nil)
	at, err := discordgo.SnowflakeTimestamp(seeded.LastMessageID)
	require.NoError(t, err)
	assert.True(t, at.Equal(now))

	seeded = adapter.Seed([]*discordgo.Message{{ID: "1"}, {ID: "2"}})
	assert.Equal(t, "2", seeded.LastMessageID)
}

func TestMessageAdapterUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "401: Unauthorized", "code": 0}`))
	}))
	defer server.Close()

	adapter := &messageAdapter{httpClient: redirectedClient(t, server), now: time.Now}
	authorized := domain.AuthorizedClient{Credential: domain.Credential{ID: "c1", AccessToken: "revoked"}}

	_, err := adapter.Fetch(context.Background(), authorized, polling.Check{Params: map[string]string{"channel_id": "555"}}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsCredentialError(err))
}

func TestWebhookExecutor(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v9/webhooks/123/secret-token", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"id": "888", "channel_id": "555"}))
	}))
	defer server.Close()

	executor := &webhookExecutor{httpClient: redirectedClient(t, server)}

	output, err := executor.Execute(context.Background(), domain.ActionExecution{
		Kind: domain.ActionKind_DiscordSendWebhookMessage,
		Config: map[string]any{
			"webhook_url": "https://discord.com/api/webhooks/123/secret-token",
			"content":     "New star on flowbaker/flowbaker",
			"username":    "Automations",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "New star on flowbaker/flowbaker", received["content"])
	assert.Equal(t, "Automations", received["username"])
	assert.Equal(t, "888", output["message_id"])
	assert.Equal(t, "123", output["webhook_id"])
}

func TestParseWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		id      string
		token   string
		wantErr bool
	}{
		{name: "standard", raw: "https://discord.com/api/webhooks/1/abc", id: "1", token: "abc"},
		{name: "trailing slash", raw: "https://discord.com/api/webhooks/1/abc/", id: "1", token: "abc"},
		{name: "missing token", raw: "https://discord.com/api/webhooks/1", wantErr: true},
		{name: "not a webhook", raw: "https://discord.com/channels/1/2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, token, err := parseWebhookURL(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.token, token)
		})
	}
}
