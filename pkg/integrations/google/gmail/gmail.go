package gmail

import (
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

type ProviderDependencies struct {
	integrations.ProviderDependencies

	Credentials     domain.CredentialStore
	TopicName       string
	RenewalWindow   time.Duration
	RenewalInterval time.Duration
}

// Provider is the Gmail provider plus the push machinery the server wires
// separately: the watch manager and its renewal sweep.
type Provider struct {
	integrations.Provider

	Watches *WatchManager
	Sweep   *RenewalSweep
}

func NewProvider(deps ProviderDependencies) Provider {
	endpoint := deps.APIBaseURL

	watches := NewWatchManager(WatchManagerDependencies{
		Credentials:   deps.Credentials,
		Authenticator: deps.Authenticator,
		TopicName:     deps.TopicName,
		RenewalWindow: deps.RenewalWindow,
		Endpoint:      endpoint,
	})

	trigger := NewMailboxTrigger(MailboxTriggerDependencies{
		Registrations: deps.Registrations,
		Validator:     deps.Validator,
		Watches:       watches,
	})

	return Provider{
		Provider: integrations.Provider{
			Type:          domain.IntegrationType_Gmail,
			Authenticator: deps.Authenticator,
			Triggers:      []domain.Trigger{trigger},
			Actions:       integrations.NewActions(deps.ProviderDependencies, SendEmailAction),
			Checkers: []polling.Checker{
				polling.NewChecker[HistoryCursor, Mailbox, Email](&historyAdapter{endpoint: endpoint}),
			},
			Executors: map[domain.ActionKind]domain.ActionExecutor{
				domain.ActionKind_GmailSendEmail: &actionExecutor{endpoint: endpoint},
			},
		},
		Watches: watches,
		Sweep:   NewRenewalSweep(trigger, watches, deps.RenewalInterval),
	}
}
