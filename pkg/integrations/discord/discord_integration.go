package discord

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/flowbaker/automations/pkg/domain"
)

type SendWebhookMessageParams struct {
	WebhookURL string `json:"webhook_url"`
	Content    string `json:"content"`
	Username   string `json:"username"`
	AvatarURL  string `json:"avatar_url"`
}

// webhookExecutor posts through the webhook token embedded in the URL, so the
// action needs no stored credential.
type webhookExecutor struct {
	httpClient *http.Client
}

func (e *webhookExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	var p SendWebhookMessageParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	webhookID, token, err := parseWebhookURL(p.WebhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}

	session.Client = e.httpClient

	message, err := session.WebhookExecute(webhookID, token, true, &discordgo.WebhookParams{
		Content:   p.Content,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Discord, "execute webhook", err)
	}

	output := map[string]any{"webhook_id": webhookID}
	if message != nil {
		output["message_id"] = message.ID
		output["channel_id"] = message.ChannelID
	}

	return output, nil
}

func parseWebhookURL(raw string) (string, string, error) {
	invalid := domain.NewValidationError("discord:send_webhook_message", domain.FieldIssue{Field: "webhook_url", Message: "must be a Discord webhook URL"})

	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", invalid
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "webhooks" && i+2 < len(segments) {
			return segments[i+1], segments[i+2], nil
		}
	}

	return "", "", invalid
}
