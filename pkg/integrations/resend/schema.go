package resendintegration

import "github.com/flowbaker/automations/pkg/domain"

const ActionID_SendEmail = "send_email"

var SendEmailAction = domain.Descriptor{
	Provider:            domain.IntegrationType_Resend,
	ID:                  ActionID_SendEmail,
	Name:                "Send Email",
	Description:         "Send a transactional email with Resend",
	RequiresCredentials: true,
	InputProperties: []domain.NodeProperty{
		{
			Key:         "from",
			Name:        "From",
			Description: "Sender on a verified domain, e.g. Alerts <alerts@example.com>",
			Required:    true,
			Type:        domain.NodePropertyType_String,
		},
		{Key: "to", Name: "To", Description: "Comma separated recipients", Required: true, Type: domain.NodePropertyType_String},
		{Key: "subject", Name: "Subject", Required: true, Type: domain.NodePropertyType_String, MaxLength: 998},
		{Key: "html", Name: "HTML Body", Type: domain.NodePropertyType_Text},
		{Key: "text", Name: "Text Body", Type: domain.NodePropertyType_Text},
		{Key: "reply_to", Name: "Reply To", Type: domain.NodePropertyType_String},
	},
}
