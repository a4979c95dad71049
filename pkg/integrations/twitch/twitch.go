package twitch

import (
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

// NewProvider needs the app client id because Helix requires it on every call.
func NewProvider(deps integrations.ProviderDependencies, clientID string) integrations.Provider {
	baseURL := deps.BaseURL(DefaultAPIBaseURL)

	return integrations.Provider{
		Type:          domain.IntegrationType_Twitch,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, StreamStartedTrigger, StreamEndedTrigger, ViewerThresholdTrigger, NewFollowerTrigger),
		Actions:       integrations.NewActions(deps, UpdateTitleAction),
		Checkers: []polling.Checker{
			polling.NewChecker[StreamCursor, *Stream, StreamEvent](&streamAdapter{baseURL: baseURL, clientID: clientID}),
			polling.NewChecker[FollowerCursor, []Follower, Follower](&followerAdapter{baseURL: baseURL, clientID: clientID}),
		},
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_TwitchUpdateTitle: &actionExecutor{baseURL: baseURL, clientID: clientID},
		},
	}
}
