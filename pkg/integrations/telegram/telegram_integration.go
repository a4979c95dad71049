package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flowbaker/automations/pkg/domain"
)

type SendMessageParams struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type actionExecutor struct {
	baseURL string
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	var p SendMessageParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	message, err := newMessage(p)
	if err != nil {
		return nil, err
	}

	var authorized domain.AuthorizedClient
	if execution.Client != nil {
		authorized = *execution.Client
	}

	bot, err := newBot(e.baseURL, authorized)
	if err != nil {
		return nil, err
	}

	sent, err := bot.Send(message)
	if err != nil {
		return nil, classify(authorized.Credential.ID, "send message", err)
	}

	return map[string]any{
		"message_id": sent.MessageID,
		"chat_id":    p.ChatID,
	}, nil
}

func newMessage(p SendMessageParams) (tgbotapi.MessageConfig, error) {
	var message tgbotapi.MessageConfig

	chatID := strings.TrimSpace(p.ChatID)

	if strings.HasPrefix(chatID, "@") {
		message = tgbotapi.NewMessageToChannel(chatID, p.Text)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return message, domain.NewValidationError("telegram:send_message", domain.FieldIssue{Field: "chat_id", Message: "must be a numeric id or an @username"})
		}

		message = tgbotapi.NewMessage(id, p.Text)
	}

	message.ParseMode = p.ParseMode

	return message, nil
}
