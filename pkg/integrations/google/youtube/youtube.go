package youtube

import (
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	return integrations.Provider{
		Type:          domain.IntegrationType_Youtube,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, NewVideoTrigger),
		Checkers: []polling.Checker{
			polling.NewChecker[VideoCursor, []Video, Video](&videoAdapter{endpoint: deps.APIBaseURL, now: time.Now}),
		},
	}
}
