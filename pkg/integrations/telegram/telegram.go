package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

func NewProvider(deps integrations.ProviderDependencies) integrations.Provider {
	baseURL := deps.BaseURL(DefaultAPIBaseURL)

	return integrations.Provider{
		Type:          domain.IntegrationType_Telegram,
		Authenticator: deps.Authenticator,
		Triggers:      integrations.NewTriggers(deps, NewMessageTrigger),
		Actions:       integrations.NewActions(deps, SendMessageAction),
		Checkers: []polling.Checker{
			polling.NewChecker[UpdateCursor, []tgbotapi.Update, tgbotapi.Update](&updateAdapter{baseURL: baseURL}),
		},
		Executors: map[domain.ActionKind]domain.ActionExecutor{
			domain.ActionKind_TelegramSendMessage: &actionExecutor{baseURL: baseURL},
		},
	}
}
