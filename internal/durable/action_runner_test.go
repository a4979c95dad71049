package durable

import (
	"context"
	"testing"

	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	executions []domain.ActionExecution
}

func (e *recordingExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	e.executions = append(e.executions, execution)
	return map[string]any{"ok": true}, nil
}

type tokenAuthenticator struct{}

func (tokenAuthenticator) Authorize(ctx context.Context, credential domain.Credential) (domain.AuthorizedClient, error) {
	if credential.AccessToken == "" {
		return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, assert.AnError)
	}

	return domain.AuthorizedClient{Credential: credential}, nil
}

func TestRenderConfig(t *testing.T) {
	rendered, err := RenderConfig(map[string]any{
		"title":  "Star from {{ .trigger.user }}",
		"labels": []any{"stars", "{{ .trigger.repository }}"},
		"nested": map[string]any{"count": 3},
	}, map[string]any{"user": "octocat", "repository": "a/b"})
	require.NoError(t, err)

	assert.Equal(t, "Star from octocat", rendered["title"])
	assert.Equal(t, []any{"stars", "a/b"}, rendered["labels"])
	assert.Equal(t, map[string]any{"count": 3}, rendered["nested"])

	_, err = RenderConfig(map[string]any{"title": "{{ .trigger.missing }}"}, map[string]any{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestActionRunner_Run(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.CreateCredential(ctx, domain.Credential{
		ID: "slack-1", OwnerID: "u1", Provider: domain.IntegrationType_Slack, AccessToken: "xoxb", IsValid: true,
	}))
	require.NoError(t, store.CreateCredential(ctx, domain.Credential{
		ID: "slack-broken", OwnerID: "u1", Provider: domain.IntegrationType_Slack, IsValid: true,
	}))

	executor := &recordingExecutor{}

	runner := NewActionRunner(ActionRunnerDependencies{
		Executors:      map[domain.ActionKind]domain.ActionExecutor{domain.ActionKind_SlackPostMessage: executor},
		Credentials:    store,
		Authenticators: map[domain.IntegrationType]domain.Authenticator{domain.IntegrationType_Slack: tokenAuthenticator{}},
	})

	output, err := runner.Run(ctx, domain.RunInput{
		Action: domain.RunAction{
			Kind:         domain.ActionKind_SlackPostMessage,
			Provider:     domain.IntegrationType_Slack,
			ID:           "post_message",
			Config:       map[string]any{"channel_id": "C1", "text": "New video: {{ .trigger.title }}"},
			CredentialID: "slack-1",
		},
		TriggerData: map[string]any{"title": "Launch"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, output["ok"])

	require.Len(t, executor.executions, 1)
	assert.Equal(t, "New video: Launch", executor.executions[0].Config["text"])
	assert.Equal(t, "xoxb", executor.executions[0].AccessToken())

	_, err = runner.Run(ctx, domain.RunInput{Action: domain.RunAction{Kind: domain.ActionKind_TwitchUpdateTitle}})
	assert.ErrorIs(t, err, domain.ErrUnsupportedAction)

	_, err = runner.Run(ctx, domain.RunInput{Action: domain.RunAction{
		Kind:         domain.ActionKind_SlackPostMessage,
		CredentialID: "slack-broken",
	}})
	assert.ErrorIs(t, err, domain.ErrCredential)

	broken, err := store.GetCredential(ctx, "slack-broken")
	require.NoError(t, err)
	assert.False(t, broken.IsValid)
}
