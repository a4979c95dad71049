package githubintegration

import (
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	baseURL := deps.APIBaseURL

	return integrations.Provider{
		Type:          domain.IntegrationType_Github,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, NewStarTrigger),
		Actions:       integrations.NewActions(deps, CreateIssueAction),
		Checkers: []polling.Checker{
			polling.NewChecker[StarCursor, []Star, Star](&starAdapter{baseURL: baseURL, now: time.Now}),
		},
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_GithubCreateIssue: &actionExecutor{baseURL: baseURL},
		},
	}
}
