package spotify

import "github.com/flowbaker/automations/pkg/domain"

const (
	TriggerID_NewPlayedTrack = "new_played_track"
	TriggerID_NewLikedSong   = "new_liked_song"
)

var trackOutput = []domain.NodeProperty{
	{Key: "track_id", Name: "Track ID", Type: domain.NodePropertyType_String},
	{Key: "track_name", Name: "Track Name", Type: domain.NodePropertyType_String},
	{Key: "artists", Name: "Artists", Type: domain.NodePropertyType_String},
	{Key: "album", Name: "Album", Type: domain.NodePropertyType_String},
	{Key: "url", Name: "Track URL", Type: domain.NodePropertyType_String},
}

var (
	NewPlayedTrackTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Spotify,
		ID:                  TriggerID_NewPlayedTrack,
		Name:                "New Played Track",
		Description:         "Triggered when a track finishes playing on your account",
		RequiresCredentials: true,
		OutputProperties: append([]domain.NodeProperty{
			{Key: "played_at", Name: "Played At", Type: domain.NodePropertyType_Date},
		}, trackOutput...),
	}

	NewLikedSongTrigger = domain.Descriptor{
		Provider:            domain.IntegrationType_Spotify,
		ID:                  TriggerID_NewLikedSong,
		Name:                "New Liked Song",
		Description:         "Triggered when you save a track to your Liked Songs",
		RequiresCredentials: true,
		OutputProperties: append([]domain.NodeProperty{
			{Key: "added_at", Name: "Added At", Type: domain.NodePropertyType_Date},
		}, trackOutput...),
	}
)
