package resendintegration

import (
	"net/url"
	"strings"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	raw := deps.BaseURL(DefaultAPIBaseURL)
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	baseURL, err := url.Parse(raw)
	if err != nil {
		baseURL, _ = url.Parse(DefaultAPIBaseURL)
	}

	return integrations.Provider{
		Type:          domain.IntegrationType_Resend,
		Authenticator: deps.Authenticator,
		Actions:       integrations.NewActions(deps, SendEmailAction),
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_ResendSendEmail: &actionExecutor{baseURL: baseURL},
		},
	}
}
