package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/flowbaker/automations/pkg/domain"
)

const userID = "me"

// Email is the trigger-facing view of a Gmail message.
type Email struct {
	ID         string
	ThreadID   string
	HistoryID  uint64
	From       string
	To         string
	Subject    string
	Snippet    string
	Labels     []string
	ReceivedAt time.Time
}

func (e Email) Payload() map[string]any {
	return map[string]any{
		"message_id":  e.ID,
		"thread_id":   e.ThreadID,
		"from":        e.From,
		"to":          e.To,
		"subject":     e.Subject,
		"snippet":     e.Snippet,
		"label":       e.Labels,
		"received_at": e.ReceivedAt.Format(time.RFC3339),
	}
}

func newService(ctx context.Context, endpoint string, authorized domain.AuthorizedClient) (*gmail.Service, error) {
	httpClient := authorized.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	options := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		options = append(options, option.WithEndpoint(endpoint))
	}

	service, err := gmail.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return service, nil
}

func toEmail(message *gmail.Message, historyID uint64) Email {
	email := Email{
		ID:         message.Id,
		ThreadID:   message.ThreadId,
		HistoryID:  historyID,
		Snippet:    message.Snippet,
		Labels:     message.LabelIds,
		ReceivedAt: time.UnixMilli(message.InternalDate).UTC(),
	}

	if message.Payload == nil {
		return email
	}

	for _, header := range message.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			email.From = header.Value
		case "to":
			email.To = header.Value
		case "subject":
			email.Subject = header.Value
		}
	}

	return email
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func classify(credentialID, op string, err error) error {
	if isStatus(err, http.StatusUnauthorized) {
		return domain.NewCredentialError(credentialID, err)
	}

	return domain.NewExternalProviderError(domain.IntegrationType_Gmail, op, err)
}
