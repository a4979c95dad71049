package initialization

import (
	"context"

	"github.com/flowbaker/automations/internal/config"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/integrations/discord"
	githubintegration "github.com/flowbaker/automations/pkg/integrations/github"
	gitlabintegration "github.com/flowbaker/automations/pkg/integrations/gitlab"
	"github.com/flowbaker/automations/pkg/integrations/google/gmail"
	"github.com/flowbaker/automations/pkg/integrations/google/youtube"
	"github.com/flowbaker/automations/pkg/integrations/oauthutil"
	resendintegration "github.com/flowbaker/automations/pkg/integrations/resend"
	slackintegration "github.com/flowbaker/automations/pkg/integrations/slack"
	"github.com/flowbaker/automations/pkg/integrations/spotify"
	"github.com/flowbaker/automations/pkg/integrations/telegram"
	"github.com/flowbaker/automations/pkg/integrations/twitch"
)

// BackgroundLoop is a recurring job started with the server.
type BackgroundLoop interface {
	Start(ctx context.Context)
	Stop() context.Context
}

type authKind int

const (
	authOAuth authKind = iota
	authStaticToken
)

type providerBuildDeps struct {
	integrations.ProviderDependencies

	Config      *config.Config
	Credentials domain.CredentialStore
}

type providerRegisterParams struct {
	IntegrationType domain.IntegrationType
	Auth            authKind
	NewProvider     func(deps providerBuildDeps) (integrations.Provider, []BackgroundLoop)
}

var providerRegisterParamsList = []providerRegisterParams{
	{
		IntegrationType: domain.IntegrationType_Gmail,
		Auth:            authOAuth,
		NewProvider: func(deps providerBuildDeps) (integrations.Provider, []BackgroundLoop) {
			provider := gmail.NewProvider(gmail.ProviderDependencies{
				ProviderDependencies: deps.ProviderDependencies,
				Credentials:          deps.Credentials,
				TopicName:            deps.Config.Gmail.PubSubTopic,
				RenewalWindow:        deps.Config.Gmail.RenewalWindow,
				RenewalInterval:      deps.Config.Gmail.RenewalInterval,
			})

			if !provider.Watches.Enabled() {
				return provider.Provider, nil
			}

			return provider.Provider, []BackgroundLoop{provider.Sweep}
		},
	},
	{
		IntegrationType: domain.IntegrationType_Youtube,
		Auth:            authOAuth,
		NewProvider:     withoutLoops(youtube.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Spotify,
		Auth:            authOAuth,
		NewProvider:     withoutLoops(spotify.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Twitch,
		Auth:            authOAuth,
		NewProvider: func(deps providerBuildDeps) (integrations.Provider, []BackgroundLoop) {
			clientID := deps.Config.OAuthApp(string(domain.IntegrationType_Twitch)).ClientID
			return twitch.NewProvider(deps.ProviderDependencies, clientID), nil
		},
	},
	{
		IntegrationType: domain.IntegrationType_Github,
		Auth:            authOAuth,
		NewProvider:     withoutLoops(githubintegration.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Gitlab,
		Auth:            authOAuth,
		NewProvider:     withoutLoops(gitlabintegration.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Telegram,
		Auth:            authStaticToken,
		NewProvider:     withoutLoops(telegram.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Discord,
		Auth:            authStaticToken,
		NewProvider: func(deps providerBuildDeps) (integrations.Provider, []BackgroundLoop) {
			return discord.NewProvider(deps.ProviderDependencies, nil), nil
		},
	},
	{
		IntegrationType: domain.IntegrationType_Slack,
		Auth:            authStaticToken,
		NewProvider:     withoutLoops(slackintegration.NewProvider),
	},
	{
		IntegrationType: domain.IntegrationType_Resend,
		Auth:            authStaticToken,
		NewProvider:     withoutLoops(resendintegration.NewProvider),
	},
}

func withoutLoops(newProvider func(integrations.ProviderDependencies) integrations.Provider) func(providerBuildDeps) (integrations.Provider, []BackgroundLoop) {
	return func(deps providerBuildDeps) (integrations.Provider, []BackgroundLoop) {
		return newProvider(deps.ProviderDependencies), nil
	}
}

func newAuthenticator(cfg *config.Config, provider domain.IntegrationType, kind authKind) domain.Authenticator {
	if kind == authStaticToken {
		return oauthutil.NewStaticTokenAuthenticator()
	}

	endpoint, ok := oauthutil.EndpointFor(provider)
	if !ok {
		return oauthutil.NewStaticTokenAuthenticator()
	}

	app := cfg.OAuthApp(string(provider))

	return oauthutil.NewOAuthAuthenticator(oauthutil.OAuthAuthenticatorDependencies{
		Provider: provider,
		Endpoint: endpoint,
		App: oauthutil.AppCredentials{
			ClientID:     app.ClientID,
			ClientSecret: app.ClientSecret,
		},
	})
}

// Providers is everything the configured providers contribute.
type Providers struct {
	Triggers       *domain.TriggerRegistry
	Actions        *domain.ActionRegistry
	Authenticators map[domain.IntegrationType]domain.Authenticator
	Executors      map[domain.ActionKind]domain.ActionExecutor
	Polling        []integrations.Provider
	Loops          []BackgroundLoop
}

type RegisterProvidersParams struct {
	Config        *config.Config
	Registrations domain.RegistrationStore
	Validator     *domain.SchemaValidator
	Credentials   domain.CredentialStore
}

func RegisterProviders(p RegisterProvidersParams) Providers {
	providers := Providers{
		Triggers:       domain.NewTriggerRegistry(),
		Actions:        domain.NewActionRegistry(),
		Authenticators: map[domain.IntegrationType]domain.Authenticator{},
		Executors:      map[domain.ActionKind]domain.ActionExecutor{},
	}

	for _, params := range providerRegisterParamsList {
		authenticator := newAuthenticator(p.Config, params.IntegrationType, params.Auth)

		provider, loops := params.NewProvider(providerBuildDeps{
			ProviderDependencies: integrations.ProviderDependencies{
				Registrations: p.Registrations,
				Validator:     p.Validator,
				Authenticator: authenticator,
				APIBaseURL:    p.Config.APIBaseURL(string(params.IntegrationType)),
			},
			Config:      p.Config,
			Credentials: p.Credentials,
		})

		for _, trigger := range provider.Triggers {
			providers.Triggers.Register(trigger)
		}

		for _, action := range provider.Actions {
			providers.Actions.Register(action)
		}

		for kind, executor := range provider.Executors {
			providers.Executors[kind] = executor
		}

		providers.Authenticators[params.IntegrationType] = provider.Authenticator

		if provider.Polls() {
			providers.Polling = append(providers.Polling, provider)
		}

		providers.Loops = append(providers.Loops, loops...)
	}

	return providers
}
