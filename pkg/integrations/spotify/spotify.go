package spotify

import (
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	baseURL := deps.BaseURL(DefaultAPIBaseURL)

	return integrations.Provider{
		Type:          domain.IntegrationType_Spotify,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, NewPlayedTrackTrigger, NewLikedSongTrigger),
		Checkers: []polling.Checker{
			polling.NewChecker[PlayedCursor, []PlayHistory, PlayHistory](&playedAdapter{baseURL: baseURL, now: time.Now}),
			polling.NewChecker[LikedCursor, []SavedTrack, SavedTrack](&likedAdapter{baseURL: baseURL}),
		},
	}
}
