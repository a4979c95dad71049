package slackintegration

import (
	"strings"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
)

// NewProvider registers the post_message action. Slack has no trigger here,
// so the provider runs no polling engine.
func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	baseURL := deps.BaseURL(DefaultAPIBaseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return integrations.Provider{
		Type:          domain.IntegrationType_Slack,
		Authenticator: deps.Authenticator,
		Actions:       integrations.NewActions(deps, PostMessageAction),
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_SlackPostMessage: &actionExecutor{baseURL: baseURL},
		},
	}
}
