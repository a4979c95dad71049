package gitlab

import (
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	return integrations.Provider{
		Type:          domain.IntegrationType_Gitlab,
		Authenticator: deps.Authenticator,
		Actions:       integrations.NewActions(deps, CreateIssueAction),
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_GitlabCreateIssue: &actionExecutor{baseURL: deps.APIBaseURL},
		},
	}
}
