package telegram

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_NewMessage = "new_message"

	ActionID_SendMessage = "send_message"
)

var (
	NewMessageTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Telegram,
		ID:                  TriggerID_NewMessage,
		Name:                "New Message",
		Description:         "Triggered when your bot receives a message",
		RequiresCredentials: true,
		AcceptsPush:         true,
		ConfigProperties: []domain.NodeProperty{
			{
				Key:         "chat_id",
				Name:        "Chat ID",
				Description: "Only messages from this chat",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
			{
				Key:         "text",
				Name:        "Text Contains",
				Description: "Only messages containing this text, case insensitive",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
		},
		OutputProperties: []domain.NodeProperty{
			{Key: "update_id", Name: "Update ID", Type: domain.NodePropertyType_Integer},
			{Key: "message_id", Name: "Message ID", Type: domain.NodePropertyType_Integer},
			{Key: "chat_id", Name: "Chat ID", Type: domain.NodePropertyType_String},
			{Key: "chat_title", Name: "Chat Title", Type: domain.NodePropertyType_String},
			{Key: "from", Name: "From", Type: domain.NodePropertyType_String},
			{Key: "text", Name: "Text", Type: domain.NodePropertyType_Text},
			{Key: "date", Name: "Date", Type: domain.NodePropertyType_Date},
		},
	}

	SendMessageAction = domain.Descriptor{
		Provider:            domain.IntegrationType_Telegram,
		ID:                  ActionID_SendMessage,
		Name:                "Send Message",
		Description:         "Send a text message from your bot",
		RequiresCredentials: true,
		InputProperties: []domain.NodeProperty{
			{Key: "chat_id", Name: "Chat ID", Description: "Numeric chat id or @channel username", Required: true, Type: domain.NodePropertyType_String},
			{Key: "text", Name: "Text", Required: true, Type: domain.NodePropertyType_Text, MaxLength: 4096},
			{
				Key:  "parse_mode",
				Name: "Parse Mode",
				Type: domain.NodePropertyType_String,
				Options: []domain.NodePropertyOption{
					{Label: "Markdown", Value: "Markdown"},
					{Label: "MarkdownV2", Value: "MarkdownV2"},
					{Label: "HTML", Value: "HTML"},
				},
			},
		},
	}
)
