package initialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/automations/internal/config"
	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations/oauthutil"
)

func newTestProviders(cfg *config.Config) Providers {
	return RegisterProviders(RegisterProvidersParams{
		Config:        cfg,
		Registrations: domain.NewInMemoryRegistrationStore(),
		Validator:     domain.NewSchemaValidator(),
		Credentials:   memory.New(),
	})
}

func TestRegisterProviders(t *testing.T) {
	providers := newTestProviders(&config.Config{})

	t.Run("every provider contributes an authenticator", func(t *testing.T) {
		assert.Len(t, providers.Authenticators, len(providerRegisterParamsList))

		for _, params := range providerRegisterParamsList {
			assert.Contains(t, providers.Authenticators, params.IntegrationType)
		}
	})

	t.Run("triggers and actions are addressable by provider and id", func(t *testing.T) {
		_, err := providers.Triggers.Get(domain.IntegrationType_Gmail, "new_email")
		require.NoError(t, err)

		_, err = providers.Triggers.Get(domain.IntegrationType_Github, "new_star")
		require.NoError(t, err)

		_, err = providers.Actions.Get(domain.IntegrationType_Telegram, "send_message")
		require.NoError(t, err)
	})

	t.Run("every registered action has an executor", func(t *testing.T) {
		for _, view := range providers.Actions.GetAllMetadata() {
			kind, err := domain.ParseActionKind(view.Descriptor.Provider, view.Descriptor.ID)
			require.NoError(t, err, view.Key)
			assert.Contains(t, providers.Executors, kind)
		}
	})

	t.Run("static token providers skip oauth", func(t *testing.T) {
		assert.IsType(t, oauthutil.NewStaticTokenAuthenticator(), providers.Authenticators[domain.IntegrationType_Telegram])
		assert.IsType(t, oauthutil.NewStaticTokenAuthenticator(), providers.Authenticators[domain.IntegrationType_Resend])
	})

	t.Run("gmail renewal runs only with a pubsub topic", func(t *testing.T) {
		assert.Empty(t, providers.Loops)

		withTopic := newTestProviders(&config.Config{
			Gmail: config.GmailConfig{PubSubTopic: "projects/p/topics/gmail"},
		})
		assert.Len(t, withTopic.Loops, 1)
	})

	t.Run("polling providers are collected", func(t *testing.T) {
		polled := map[domain.IntegrationType]bool{}
		for _, provider := range providers.Polling {
			polled[provider.Type] = true
		}

		assert.True(t, polled[domain.IntegrationType_Gmail])
		assert.True(t, polled[domain.IntegrationType_Github])
		assert.True(t, polled[domain.IntegrationType_Telegram])
	})
}
