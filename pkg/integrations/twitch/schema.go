package twitch

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_StreamStarted   = "stream_started"
	TriggerID_StreamEnded     = "stream_ended"
	TriggerID_ViewerThreshold = "viewer_threshold"
	TriggerID_NewFollower     = "new_follower"

	ActionID_UpdateTitle = "update_title"
)

var minViewers = float64(1)

var streamOutput = []domain.NodeProperty{
	{Key: "stream_id", Name: "Stream ID", Type: domain.NodePropertyType_String},
	{Key: "broadcaster", Name: "Broadcaster", Type: domain.NodePropertyType_String},
	{Key: "title", Name: "Title", Type: domain.NodePropertyType_String},
	{Key: "game_name", Name: "Category", Type: domain.NodePropertyType_String},
	{Key: "viewer_count", Name: "Viewer Count", Type: domain.NodePropertyType_Integer},
	{Key: "started_at", Name: "Started At", Type: domain.NodePropertyType_Date},
}

var (
	StreamStartedTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Twitch,
		ID:                  TriggerID_StreamStarted,
		Name:                "Stream Started",
		Description:         "Triggered when your channel goes live",
		RequiresCredentials: true,
		OutputProperties:    streamOutput,
	}

	StreamEndedTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Twitch,
		ID:                  TriggerID_StreamEnded,
		Name:                "Stream Ended",
		Description:         "Triggered when your channel goes offline",
		RequiresCredentials: true,
		OutputProperties:    streamOutput,
	}

	ViewerThresholdTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Twitch,
		ID:                  TriggerID_ViewerThreshold,
		Name:                "Viewer Count Reached",
		Description:         "Triggered when the live viewer count rises to the configured threshold",
		RequiresCredentials: true,
		ConfigProperties: []domain.NodeProperty{
			{
				Key:         "threshold",
				Name:        "Threshold",
				Description: "Number of concurrent viewers to reach",
				Required:    true,
				Type:        domain.NodePropertyType_Integer,
				NumberOpts:  &domain.NumberPropertyOptions{Min: &minViewers},
			},
		},
		OutputProperties: append([]domain.NodeProperty{
			{Key: "threshold", Name: "Threshold", Type: domain.NodePropertyType_Integer},
		}, streamOutput...),
	}

	NewFollowerTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Twitch,
		ID:                  TriggerID_NewFollower,
		Name:                "New Follower",
		Description:         "Triggered when someone follows your channel",
		RequiresCredentials: true,
		OutputProperties: []domain.NodeProperty{
			{Key: "user_id", Name: "User ID", Type: domain.NodePropertyType_String},
			{Key: "user_login", Name: "Login", Type: domain.NodePropertyType_String},
			{Key: "user_name", Name: "Display Name", Type: domain.NodePropertyType_String},
			{Key: "followed_at", Name: "Followed At", Type: domain.NodePropertyType_Date},
		},
	}

	UpdateTitleAction = domain.Descriptor{
		Provider:            domain.IntegrationType_Twitch,
		ID:                  ActionID_UpdateTitle,
		Name:                "Update Stream Title",
		Description:         "Change the title of your channel",
		RequiresCredentials: true,
		InputProperties: []domain.NodeProperty{
			{Key: "title", Name: "Title", Required: true, Type: domain.NodePropertyType_String, MaxLength: 140},
		},
	}
)
