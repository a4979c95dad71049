package discord

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_NewChannelMessage = "new_channel_message"

	ActionID_SendWebhookMessage = "send_webhook_message"
)

const webhookURLPattern = `^https://(ptb\.|canary\.)?discord(app)?\.com/api/webhooks/[0-9]+/[A-Za-z0-9_-]+$`

var (
	NewChannelMessageTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Discord,
		ID:                  TriggerID_NewChannelMessage,
		Name:                "New Channel Message",
		Description:         "Triggered when a message is posted in a channel your bot can read",
		RequiresCredentials: true,
		ConfigProperties: []domain.NodeProperty{
			{
				Key:         "channel_id",
				Name:        "Channel ID",
				Description: "The ID of the channel to watch",
				Required:    true,
				Type:        domain.NodePropertyType_String,
				Pattern:     `^[0-9]+$`,
			},
			{
				Key:         "content",
				Name:        "Content Contains",
				Description: "Only messages containing this text, case insensitive",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
			{
				Key:         "author",
				Name:        "Author",
				Description: "Only messages from this username",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
		},
		OutputProperties: []domain.NodeProperty{
			{Key: "message_id", Name: "Message ID", Type: domain.NodePropertyType_String},
			{Key: "channel_id", Name: "Channel ID", Type: domain.NodePropertyType_String},
			{Key: "guild_id", Name: "Guild ID", Type: domain.NodePropertyType_String},
			{Key: "content", Name: "Content", Type: domain.NodePropertyType_Text},
			{Key: "author", Name: "Author", Type: domain.NodePropertyType_String},
			{Key: "author_id", Name: "Author ID", Type: domain.NodePropertyType_String},
			{Key: "timestamp", Name: "Timestamp", Type: domain.NodePropertyType_Date},
		},
	}

	SendWebhookMessageAction = domain.Descriptor{
		Provider:    domain.IntegrationType_Discord,
		ID:          ActionID_SendWebhookMessage,
		Name:        "Send Webhook Message",
		Description: "Post a message through a channel webhook",
		InputProperties: []domain.NodeProperty{
			{
				Key:         "webhook_url",
				Name:        "Webhook URL",
				Description: "Channel settings, Integrations, Webhooks, Copy Webhook URL",
				Required:    true,
				Type:        domain.NodePropertyType_String,
				IsSecret:    true,
				Pattern:     webhookURLPattern,
			},
			{Key: "content", Name: "Content", Required: true, Type: domain.NodePropertyType_Text, MaxLength: 2000},
			{Key: "username", Name: "Username", Description: "Overrides the webhook's default name", Type: domain.NodePropertyType_String},
			{Key: "avatar_url", Name: "Avatar URL", Type: domain.NodePropertyType_String},
		},
	}
)
