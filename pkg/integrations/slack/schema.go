package slackintegration

import "github.com/flowbaker/automations/pkg/domain"

const ActionID_PostMessage = "post_message"

var PostMessageAction = domain.Descriptor{
	Provider:            domain.IntegrationType_Slack,
	ID:                  ActionID_PostMessage,
	Name:                "Post Message",
	Description:         "Post a message to a channel as your Slack app",
	RequiresCredentials: true,
	InputProperties: []domain.NodeProperty{
		{
			Key:         "channel_id",
			Name:        "Channel",
			Description: "Channel ID or name the app is a member of",
			Required:    true,
			Type:        domain.NodePropertyType_String,
		},
		{Key: "text", Name: "Text", Required: true, Type: domain.NodePropertyType_Text, MaxLength: 40000},
		{
			Key:         "thread_ts",
			Name:        "Thread",
			Description: "Timestamp of the parent message to reply in a thread",
			Type:        domain.NodePropertyType_String,
		},
		{Key: "username", Name: "Username", Type: domain.NodePropertyType_String},
		{Key: "icon_emoji", Name: "Icon Emoji", Type: domain.NodePropertyType_String, Placeholder: ":robot_face:"},
	},
}
