package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

// MessageCursor is stored per channel.
type MessageCursor struct {
	LastMessageID string `json:"last_message_id"`
}

type messageAdapter struct {
	httpClient *http.Client
	now        func() time.Time
}

func (a *messageAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewChannelMessage}
}

func (a *messageAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.ChecksByConfig("discord:messages", "channel_id", targets)
}

func (a *messageAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *MessageCursor) ([]*discordgo.Message, error) {
	session, err := discordgo.New("Bot " + authorized.Credential.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Client = a.httpClient

	afterID := ""
	if cursor != nil {
		afterID = cursor.LastMessageID
	}

	messages, err := session.ChannelMessages(check.Params["channel_id"], 100, "", afterID, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(authorized.Credential.ID, "channel messages", err)
	}

	sort.SliceStable(messages, func(i, j int) bool { return snowflake(messages[i].ID) < snowflake(messages[j].ID) })

	return messages, nil
}

// Seed starts at the newest message, or at a snowflake for the current time
// when the channel is empty.
func (a *messageAdapter) Seed(messages []*discordgo.Message) MessageCursor {
	if len(messages) > 0 {
		return MessageCursor{LastMessageID: messages[len(messages)-1].ID}
	}

	return MessageCursor{LastMessageID: timeToSnowflake(a.now())}
}

func (a *messageAdapter) Diff(cursor MessageCursor, messages []*discordgo.Message) []*discordgo.Message {
	last := snowflake(cursor.LastMessageID)

	fresh := []*discordgo.Message{}
	for _, message := range messages {
		if snowflake(message.ID) > last {
			fresh = append(fresh, message)
		}
	}

	return fresh
}

func (a *messageAdapter) Advance(cursor MessageCursor, messages []*discordgo.Message, delivered, pending []*discordgo.Message) MessageCursor {
	for _, message := range delivered {
		if snowflake(message.ID) > snowflake(cursor.LastMessageID) {
			cursor.LastMessageID = message.ID
		}
	}

	return cursor
}

func (a *messageAdapter) Matches(message *discordgo.Message, target polling.Target) bool {
	return integrations.MatchesFilters(NewChannelMessageTrigger, target.Config, a.Payload(message))
}

func (a *messageAdapter) Payload(message *discordgo.Message) map[string]any {
	payload := map[string]any{
		"message_id": message.ID,
		"channel_id": message.ChannelID,
		"guild_id":   message.GuildID,
		"content":    message.Content,
		"timestamp":  message.Timestamp.Format(time.RFC3339),
	}

	if message.Author != nil {
		payload["author"] = message.Author.Username
		payload["author_id"] = message.Author.ID
	}

	return payload
}

func snowflake(id string) uint64 {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

const discordEpochMillis = 1420070400000

func timeToSnowflake(t time.Time) string {
	return strconv.FormatUint(uint64(t.UnixMilli()-discordEpochMillis)<<22, 10)
}

func classify(credentialID, op string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
		return domain.NewCredentialError(credentialID, err)
	}

	return domain.NewExternalProviderError(domain.IntegrationType_Discord, op, err)
}
