package youtube

import "github.com/flowbaker/automations/pkg/domain"

const TriggerID_NewVideo = "new_video"

var NewVideoTrigger = domain.Descriptor{
	Provider:            domain.IntegrationType_Youtube,
	ID:                  TriggerID_NewVideo,
	Name:                "New Video",
	Description:         "Triggered when a channel publishes a new video",
	RequiresCredentials: true,
	ConfigProperties: []domain.NodeProperty{
		{
			Key:         "channel_id",
			Name:        "Channel ID",
			Description: "The channel to watch, e.g. UC_x5XG1OV2P6uZZ5FSM9Ttw",
			Required:    true,
			Type:        domain.NodePropertyType_String,
			Pattern:     `^UC[A-Za-z0-9_-]{22}$`,
		},
		{
			Key:         "title",
			Name:        "Title Contains",
			Description: "Only videos whose title contains this text",
			Type:        domain.NodePropertyType_String,
			Filter:      true,
		},
	},
	OutputProperties: []domain.NodeProperty{
		{Key: "video_id", Name: "Video ID", Type: domain.NodePropertyType_String},
		{Key: "title", Name: "Title", Type: domain.NodePropertyType_String},
		{Key: "description", Name: "Description", Type: domain.NodePropertyType_Text},
		{Key: "channel_id", Name: "Channel ID", Type: domain.NodePropertyType_String},
		{Key: "channel_title", Name: "Channel Title", Type: domain.NodePropertyType_String},
		{Key: "url", Name: "URL", Type: domain.NodePropertyType_String},
		{Key: "published_at", Name: "Published At", Type: domain.NodePropertyType_Date},
	},
}
