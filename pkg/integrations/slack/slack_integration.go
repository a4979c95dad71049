package slackintegration

import (
	"context"
	"errors"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/flowbaker/automations/pkg/domain"
)

const DefaultAPIBaseURL = "https://slack.com/api/"

var revokedTokenErrors = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
}

type PostMessageParams struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
	ThreadTS  string `json:"thread_ts"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

type PostMessageOutput struct {
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
}

type actionExecutor struct {
	baseURL string
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	if execution.Client == nil {
		return nil, domain.NewValidationError("slack:post_message", domain.FieldIssue{Field: "credential_id", Message: "a Slack credential is required"})
	}

	var p PostMessageParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	options := []slack.MsgOption{slack.MsgOptionText(p.Text, false)}

	if p.ThreadTS != "" {
		options = append(options, slack.MsgOptionTS(p.ThreadTS))
	}

	if p.Username != "" {
		options = append(options, slack.MsgOptionUsername(p.Username))
	}

	if p.IconEmoji != "" {
		options = append(options, slack.MsgOptionIconEmoji(p.IconEmoji))
	}

	client := e.client(*execution.Client)

	channel, ts, err := client.PostMessageContext(ctx, p.ChannelID, options...)
	if err != nil {
		return nil, classify(execution.Client.Credential.ID, err)
	}

	return map[string]any{
		"channel_id": channel,
		"timestamp":  ts,
	}, nil
}

func (e *actionExecutor) client(authorized domain.AuthorizedClient) *slack.Client {
	httpClient := authorized.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return slack.New(authorized.Credential.AccessToken,
		slack.OptionAPIURL(e.baseURL),
		slack.OptionHTTPClient(httpClient),
	)
}

func classify(credentialID string, err error) error {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) && revokedTokenErrors[slackErr.Err] {
		return domain.NewCredentialError(credentialID, err)
	}

	return domain.NewExternalProviderError(domain.IntegrationType_Slack, "post message", err)
}
