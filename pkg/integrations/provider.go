package integrations

import (
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/polling"
)

// Provider bundles everything one external service contributes: its
// capabilities, how its credentials are authorized, the checkers its polling
// engine runs and the executors of its actions.
type Provider struct {
	Type          domain.IntegrationType
	Authenticator domain.Authenticator
	Triggers      []domain.Trigger
	Actions       []domain.Action
	Checkers      []polling.Checker
	Executors     map[domain.ActionKind]domain.ActionExecutor
}

func (p Provider) Polls() bool {
	return len(p.Checkers) > 0
}

type ProviderDependencies struct {
	Registrations domain.RegistrationStore
	Validator     *domain.SchemaValidator
	Authenticator domain.Authenticator
	// APIBaseURL overrides the provider's API host, used by tests.
	APIBaseURL string
}

func (d ProviderDependencies) BaseURL(fallback string) string {
	if d.APIBaseURL != "" {
		return d.APIBaseURL
	}

	return fallback
}

// NewTriggers builds registration-only triggers for descriptors that need no
// external setup.
func NewTriggers(deps ProviderDependencies, descriptors ...domain.Descriptor) []domain.Trigger {
	triggers := make([]domain.Trigger, 0, len(descriptors))

	for _, descriptor := range descriptors {
		triggers = append(triggers, domain.NewBaseTrigger(domain.BaseTriggerDependencies{
			Descriptor:    descriptor,
			Registrations: deps.Registrations,
			Validator:     deps.Validator,
		}))
	}

	return triggers
}

func NewActions(deps ProviderDependencies, descriptors ...domain.Descriptor) []domain.Action {
	actions := make([]domain.Action, 0, len(descriptors))

	for _, descriptor := range descriptors {
		actions = append(actions, domain.NewBaseAction(descriptor, deps.Validator))
	}

	return actions
}

// MatchesFilters applies the descriptor's filter properties to an event.
func MatchesFilters(descriptor domain.Descriptor, config map[string]any, event map[string]any) bool {
	return domain.MatchesConfig(domain.FilterKeys(descriptor.ConfigProperties), config, event)
}

// StringConfig reads a string config value, empty when absent.
func StringConfig(config map[string]any, key string) string {
	value, _ := config[key].(string)
	return value
}
