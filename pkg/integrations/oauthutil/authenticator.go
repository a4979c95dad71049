package oauthutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

var (
	ErrMissingToken = errors.New("credential has no access token")
	ErrTokenExpired = errors.New("access token expired and no refresh token is available")
)

var (
	SpotifyEndpoint = oauth2.Endpoint{
		AuthURL:  "https://accounts.spotify.com/authorize",
		TokenURL: "https://accounts.spotify.com/api/token",
	}

	TwitchEndpoint = oauth2.Endpoint{
		AuthURL:   "https://id.twitch.tv/oauth2/authorize",
		TokenURL:  "https://id.twitch.tv/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	GitlabEndpoint = oauth2.Endpoint{
		AuthURL:  "https://gitlab.com/oauth/authorize",
		TokenURL: "https://gitlab.com/oauth/token",
	}
)

// EndpointFor returns the token endpoint of providers that issue refreshable tokens.
func EndpointFor(provider domain.IntegrationType) (oauth2.Endpoint, bool) {
	switch provider {
	case domain.IntegrationType_Gmail, domain.IntegrationType_Youtube:
		return google.Endpoint, true
	case domain.IntegrationType_Spotify:
		return SpotifyEndpoint, true
	case domain.IntegrationType_Twitch:
		return TwitchEndpoint, true
	case domain.IntegrationType_Github:
		return github.Endpoint, true
	case domain.IntegrationType_Gitlab:
		return GitlabEndpoint, true
	default:
		return oauth2.Endpoint{}, false
	}
}

type AppCredentials struct {
	ClientID     string
	ClientSecret string
}

type OAuthAuthenticatorDependencies struct {
	Provider domain.IntegrationType
	Endpoint oauth2.Endpoint
	App      AppCredentials
}

// OAuthAuthenticator refreshes expired tokens just in time. Refreshed tokens
// are reported in AuthorizedClient.TokenUpdate for the caller to persist.
type OAuthAuthenticator struct {
	provider domain.IntegrationType
	endpoint oauth2.Endpoint
	app      AppCredentials
}

func NewOAuthAuthenticator(deps OAuthAuthenticatorDependencies) *OAuthAuthenticator {
	return &OAuthAuthenticator{
		provider: deps.Provider,
		endpoint: deps.Endpoint,
		app:      deps.App,
	}
}

func (a *OAuthAuthenticator) Authorize(ctx context.Context, credential domain.Credential) (domain.AuthorizedClient, error) {
	if credential.AccessToken == "" && credential.RefreshToken == "" {
		return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, ErrMissingToken)
	}

	token := &oauth2.Token{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
		TokenType:    "Bearer",
	}

	if credential.ExpiresAt != nil {
		token.Expiry = *credential.ExpiresAt
	}

	if !token.Valid() && token.RefreshToken == "" {
		return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, ErrTokenExpired)
	}

	config := a.configFor(credential)

	fresh, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, fmt.Errorf("failed to refresh token: %w", err))
		}

		return domain.AuthorizedClient{}, domain.NewExternalProviderError(a.provider, "refresh token", err)
	}

	authorized := domain.AuthorizedClient{
		Credential: credential,
		HTTPClient: oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh)),
	}

	if fresh.AccessToken != credential.AccessToken {
		update := &domain.TokenUpdate{
			AccessToken:  fresh.AccessToken,
			RefreshToken: fresh.RefreshToken,
		}

		if !fresh.Expiry.IsZero() {
			expiry := fresh.Expiry
			update.ExpiresAt = &expiry
		}

		authorized.TokenUpdate = update
		authorized.Credential = applyTokenUpdate(credential, *update)
	}

	return authorized, nil
}

func (a *OAuthAuthenticator) configFor(credential domain.Credential) *oauth2.Config {
	clientID := a.app.ClientID
	clientSecret := a.app.ClientSecret

	if credential.ClientID != "" {
		clientID = credential.ClientID
		clientSecret = credential.ClientSecret
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     a.endpoint,
	}
}

func applyTokenUpdate(credential domain.Credential, update domain.TokenUpdate) domain.Credential {
	credential.AccessToken = update.AccessToken
	if update.RefreshToken != "" {
		credential.RefreshToken = update.RefreshToken
	}
	credential.ExpiresAt = update.ExpiresAt

	return credential
}

// StaticTokenAuthenticator serves long-lived tokens such as bot tokens and API keys.
type StaticTokenAuthenticator struct{}

func NewStaticTokenAuthenticator() *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{}
}

func (a *StaticTokenAuthenticator) Authorize(ctx context.Context, credential domain.Credential) (domain.AuthorizedClient, error) {
	if credential.AccessToken == "" {
		return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, ErrMissingToken)
	}

	if credential.ExpiresAt != nil && time.Now().After(*credential.ExpiresAt) {
		return domain.AuthorizedClient{}, domain.NewCredentialError(credential.ID, ErrTokenExpired)
	}

	return domain.AuthorizedClient{
		Credential: credential,
		HTTPClient: oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential.AccessToken, TokenType: "Bearer"})),
	}, nil
}

// NoAuthAuthenticator is used by providers whose actions carry their own secret.
type NoAuthAuthenticator struct{}

func (NoAuthAuthenticator) Authorize(ctx context.Context, credential domain.Credential) (domain.AuthorizedClient, error) {
	return domain.AuthorizedClient{Credential: credential, HTTPClient: http.DefaultClient}, nil
}
