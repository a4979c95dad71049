package gmail

import (
	"context"
	"net/http"
	"slices"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/gmail/v1"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/integrations"
	"github.com/flowbaker/automations/pkg/polling"
)

const (
	historyCursorKey = "gmail:history"
	maxHistoryPages  = 5
)

// HistoryCursor is the last mailbox history id whose messages were dispatched.
type HistoryCursor struct {
	HistoryID uint64 `json:"history_id"`
}

// Mailbox is one history fetch. Reset is set when the stored history id is
// older than Gmail keeps and the cursor must jump to HistoryID.
type Mailbox struct {
	HistoryID uint64
	Emails    []Email
	Reset     bool
}

type addedMessage struct {
	id        string
	historyID uint64
}

type historyAdapter struct {
	endpoint string
}

func (a *historyAdapter) TriggerIDs() []string {
	return []string{TriggerID_NewEmail}
}

func (a *historyAdapter) Plan(targets []polling.Target) []polling.Check {
	return polling.SingleCheck(historyCursorKey, targets)
}

func (a *historyAdapter) Fetch(ctx context.Context, authorized domain.AuthorizedClient, check polling.Check, cursor *HistoryCursor) (Mailbox, error) {
	service, err := newService(ctx, a.endpoint, authorized)
	if err != nil {
		return Mailbox{}, err
	}

	if cursor == nil {
		return a.latest(ctx, service, authorized)
	}

	mailbox := Mailbox{HistoryID: cursor.HistoryID}
	added := []addedMessage{}
	seen := map[string]bool{}

	pageToken := ""
	for page := 0; page < maxHistoryPages; page++ {
		call := service.Users.History.List(userID).
			StartHistoryId(cursor.HistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				log.Warn().Str("credential_id", authorized.Credential.ID).Uint64("history_id", cursor.HistoryID).Msg("Gmail history id expired, resetting cursor")

				mailbox, err := a.latest(ctx, service, authorized)
				mailbox.Reset = true
				return mailbox, err
			}

			return Mailbox{}, classify(authorized.Credential.ID, "list history", err)
		}

		for _, record := range response.History {
			for _, messageAdded := range record.MessagesAdded {
				if messageAdded.Message == nil || seen[messageAdded.Message.Id] {
					continue
				}

				seen[messageAdded.Message.Id] = true
				added = append(added, addedMessage{id: messageAdded.Message.Id, historyID: record.Id})
			}

			if record.Id > mailbox.HistoryID {
				mailbox.HistoryID = record.Id
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			if response.HistoryId > mailbox.HistoryID {
				mailbox.HistoryID = response.HistoryId
			}
			break
		}
	}

	for _, message := range added {
		full, err := service.Users.Messages.Get(userID, message.id).
			Format("metadata").
			MetadataHeaders("From", "To", "Subject").
			Context(ctx).
			Do()
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				continue
			}

			return Mailbox{}, classify(authorized.Credential.ID, "get message", err)
		}

		if slices.Contains(full.LabelIds, "DRAFT") {
			continue
		}

		mailbox.Emails = append(mailbox.Emails, toEmail(full, message.historyID))
	}

	return mailbox, nil
}

func (a *historyAdapter) latest(ctx context.Context, service *gmail.Service, authorized domain.AuthorizedClient) (Mailbox, error) {
	profile, err := service.Users.GetProfile(userID).Context(ctx).Do()
	if err != nil {
		return Mailbox{}, classify(authorized.Credential.ID, "get profile", err)
	}

	return Mailbox{HistoryID: profile.HistoryId}, nil
}

func (a *historyAdapter) Seed(mailbox Mailbox) HistoryCursor {
	return HistoryCursor{HistoryID: mailbox.HistoryID}
}

func (a *historyAdapter) Diff(cursor HistoryCursor, mailbox Mailbox) []Email {
	if mailbox.Reset {
		return nil
	}

	fresh := []Email{}
	for _, email := range mailbox.Emails {
		if email.HistoryID > cursor.HistoryID {
			fresh = append(fresh, email)
		}
	}

	return fresh
}

// Advance jumps to the mailbox head when everything was delivered, otherwise
// stops at the last delivered history record.
func (a *historyAdapter) Advance(cursor HistoryCursor, mailbox Mailbox, delivered, pending []Email) HistoryCursor {
	if mailbox.Reset || len(pending) == 0 {
		if mailbox.HistoryID > cursor.HistoryID || mailbox.Reset {
			return HistoryCursor{HistoryID: mailbox.HistoryID}
		}

		return cursor
	}

	for _, email := range delivered {
		if email.HistoryID > cursor.HistoryID && email.HistoryID < pending[0].HistoryID {
			cursor.HistoryID = email.HistoryID
		}
	}

	return cursor
}

func (a *historyAdapter) Matches(email Email, target polling.Target) bool {
	return integrations.MatchesFilters(NewEmailTrigger, target.Config, email.Payload())
}

func (a *historyAdapter) Payload(email Email) map[string]any {
	return email.Payload()
}
