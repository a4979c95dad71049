package telegram

import (
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flowbaker/automations/pkg/domain"
)

const DefaultAPIBaseURL = "https://api.telegram.org"

func newBot(baseURL string, authorized domain.AuthorizedClient) (*tgbotapi.BotAPI, error) {
	token := authorized.Credential.AccessToken
	if token == "" {
		return nil, domain.NewCredentialError(authorized.Credential.ID, fmt.Errorf("bot token is missing"))
	}

	httpClient := authorized.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, baseURL+"/bot%s/%s", httpClient)
	if err != nil {
		return nil, classify(authorized.Credential.ID, "get me", err)
	}

	return bot, nil
}

// classify turns a rejected token into a CredentialError so the credential
// stops being polled.
func classify(credentialID, op string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return domain.NewCredentialError(credentialID, err)
	}

	return domain.NewExternalProviderError(domain.IntegrationType_Telegram, op, err)
}
