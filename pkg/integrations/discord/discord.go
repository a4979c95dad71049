package discord

import (
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

// NewProvider wires the Discord bot trigger and the webhook action. Discord
// authenticates bots with a "Bot" prefixed header, so requests go through a
// plain HTTP client rather than the bearer client of the authorized credential.
func NewProvider(deps integrations.ProviderDependencies, httpClient *http.Client) integrations.Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	return integrations.Provider{
		Type:          domain.IntegrationType_Discord,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, NewChannelMessageTrigger),
		Actions:       integrations.NewActions(deps, SendWebhookMessageAction),
		Checkers: []polling.Checker{
			polling.NewChecker[MessageCursor, []*discordgo.Message, *discordgo.Message](&messageAdapter{httpClient: httpClient, now: time.Now}),
		},
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_DiscordSendWebhookMessage: &webhookExecutor{httpClient: httpClient},
		},
	}
}
