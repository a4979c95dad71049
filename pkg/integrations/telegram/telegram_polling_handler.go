package telegram

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

// UpdateCursor is the next update id to request.
type UpdateCursor struct {
	Offset int `json:"offset"`
}

type updateAdapter struct {
	baseURL string
}

func (a *updateAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewMessage}
}

func (a *updateAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck("telegram:updates", targets)
}

func (a *updateAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *UpdateCursor) ([]tgbotapi.Update, error) {
	bot, err := newBot(a.baseURL, authorized)
	if err != nil {
		return nil, err
	}

	config := tgbotapi.NewUpdate(0)
	config.Limit = 100
	config.AllowedUpdates = []string{"message", "channel_post"}

	if cursor != nil {
		config.Offset = cursor.Offset
	}

	updates, err := bot.GetUpdates(config)
	if err != nil {
		return nil, classify(authorized.Credential.ID, "get updates", err)
	}

	return updates, nil
}

func (a *updateAdapter) Seed(updates []tgbotapi.Update) UpdateCursor {
	return UpdateCursor{Offset: nextOffset(0, updates)}
}

func (a *updateAdapter) Diff(cursor UpdateCursor, updates []tgbotapi.Update) []tgbotapi.Update {
	fresh := []tgbotapi.Update{}
	for _, update := range updates {
		if update.UpdateID >= cursor.Offset && messageOf(update) != nil {
			fresh = append(fresh, update)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].UpdateID < fresh[j].UpdateID })

	return fresh
}

func (a *updateAdapter) Advance(cursor UpdateCursor, updates []tgbotapi.Update, delivered, pending []tgbotapi.Update) UpdateCursor {
	if len(pending) == 0 {
		return UpdateCursor{Offset: nextOffset(cursor.Offset, updates)}
	}

	return UpdateCursor{Offset: nextOffset(cursor.Offset, delivered)}
}

func (a *updateAdapter) Matches(update tgbotapi.Update, target polling.Target) bool {
	return integrations.MatchesFilters(NewMessageTrigger, target.Config, UpdatePayload(update))
}

func (a *updateAdapter) Payload(update tgbotapi.Update) map[string]any {
	return UpdatePayload(update)
}

func nextOffset(offset int, updates []tgbotapi.Update) int {
	for _, update := range updates {
		if update.UpdateID+1 > offset {
			offset = update.UpdateID + 1
		}
	}

	return offset
}

func messageOf(update tgbotapi.Update) *tgbotapi.Message {
	if update.Message != nil {
		return update.Message
	}

	return update.ChannelPost
}

// UpdatePayload is the trigger payload of a message update, shared by the
// poller and pushed webhook updates.
func UpdatePayload(update tgbotapi.Update) map[string]any {
	payload := map[string]any{"update_id": update.UpdateID}

	message := messageOf(update)
	if message == nil {
		return payload
	}

	payload["message_id"] = message.MessageID
	payload["text"] = message.Text
	payload["date"] = time.Unix(int64(message.Date), 0).UTC().Format(time.RFC3339)

	if message.Chat != nil {
		payload["chat_id"] = strconv.FormatInt(message.Chat.ID, 10)
		payload["chat_title"] = chatTitle(message.Chat)
	}

	if message.From != nil {
		payload["from"] = senderName(message.From)
	}

	return payload
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}

	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}

func senderName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}

	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// NormalizePush turns a pushed event into the trigger payload. Raw Telegram
// updates, as posted by a bot webhook, are converted like polled ones.
func NormalizePush(data map[string]any) (map[string]any, error) {
	if _, ok := data["update_id"]; !ok {
		return data, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, domain.NewValidationError("telegram update", domain.FieldIssue{Field: "data", Message: err.Error()})
	}

	return UpdatePayload(update), nil
}
