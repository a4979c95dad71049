package gmail

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_NewEmail = "new_email"

	ActionID_SendEmail = "send_email"
)

var (
	NewEmailTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Gmail,
		ID:                  TriggerID_NewEmail,
		Name:                "New Email",
		Description:         "Triggered when a new email arrives in the connected mailbox",
		RequiresCredentials: true,
		AcceptsPush:         true,
		ConfigProperties: []domain.NodeProperty{
			{
				Key:         "label",
				Name:        "Label",
				Description: "Only emails carrying this label, e.g. INBOX or a custom label id",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
			{
				Key:         "from",
				Name:        "From",
				Description: "Only emails whose sender contains this text",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
			{
				Key:         "subject",
				Name:        "Subject",
				Description: "Only emails whose subject contains this text",
				Type:        domain.NodePropertyType_String,
				Filter:      true,
			},
		},
		OutputProperties: []domain.NodeProperty{
			{Key: "message_id", Name: "Message ID", Type: domain.NodePropertyType_String},
			{Key: "thread_id", Name: "Thread ID", Type: domain.NodePropertyType_String},
			{Key: "from", Name: "From", Type: domain.NodePropertyType_String},
			{Key: "to", Name: "To", Type: domain.NodePropertyType_String},
			{Key: "subject", Name: "Subject", Type: domain.NodePropertyType_String},
			{Key: "snippet", Name: "Snippet", Type: domain.NodePropertyType_Text},
			{Key: "label", Name: "Labels", Type: domain.NodePropertyType_Array},
			{Key: "received_at", Name: "Received At", Type: domain.NodePropertyType_Date},
		},
	}

	SendEmailAction = domain.Descriptor{
		Provider:            domain.IntegrationType_Gmail,
		ID:                  ActionID_SendEmail,
		Name:                "Send Email",
		Description:         "Send an email from the connected mailbox",
		RequiresCredentials: true,
		InputProperties: []domain.NodeProperty{
			{Key: "to", Name: "To", Description: "Comma separated recipients", Required: true, Type: domain.NodePropertyType_String},
			{Key: "cc", Name: "Cc", Type: domain.NodePropertyType_String},
			{Key: "bcc", Name: "Bcc", Type: domain.NodePropertyType_String},
			{Key: "subject", Name: "Subject", Required: true, Type: domain.NodePropertyType_String},
			{Key: "body", Name: "Body", Required: true, Type: domain.NodePropertyType_Text},
			{
				Key:  "body_type",
				Name: "Body Type",
				Type: domain.NodePropertyType_String,
				Options: []domain.NodePropertyOption{
					{Label: "Plain Text", Value: "text"},
					{Label: "HTML", Value: "html"},
				},
			},
		},
	}
)
