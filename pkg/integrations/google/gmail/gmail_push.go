package gmail

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedNotification = errors.New("malformed gmail push notification")

// PushEnvelope is the body Pub/Sub posts to a push subscription endpoint.
type PushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Notification says the mailbox changed up to HistoryID.
type Notification struct {
	MessageID    string
	EmailAddress string
	HistoryID    uint64
}

func ParseNotification(body []byte) (Notification, error) {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if envelope.Message.MessageID == "" || envelope.Message.Data == "" {
		return Notification{}, fmt.Errorf("%w: missing message id or data", ErrMalformedNotification)
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			return Notification{}, fmt.Errorf("%w: data is not base64", ErrMalformedNotification)
		}
	}

	var payload struct {
		EmailAddress string          `json:"emailAddress"`
		HistoryID    json.RawMessage `json:"historyId"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	if payload.EmailAddress == "" {
		return Notification{}, fmt.Errorf("%w: missing emailAddress", ErrMalformedNotification)
	}

	historyID, err := strconv.ParseUint(strings.Trim(string(payload.HistoryID), `"`), 10, 64)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: invalid historyId", ErrMalformedNotification)
	}

	return Notification{
		MessageID:    envelope.Message.MessageID,
		EmailAddress: strings.ToLower(payload.EmailAddress),
		HistoryID:    historyID,
	}, nil
}
