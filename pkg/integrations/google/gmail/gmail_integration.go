package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/flowbaker/automations/pkg/domain"
)

type SendEmailParams struct {
	To       string `json:"to"`
	Cc       string `json:"cc"`
	Bcc      string `json:"bcc"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	BodyType string `json:"body_type"`
}

type actionExecutor struct {
	endpoint string
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	if execution.Client == nil {
		return nil, domain.NewValidationError("gmail:send_email", domain.FieldIssue{Field: "credential_id", Message: "a Gmail credential is required"})
	}

	var p SendEmailParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	service, err := newService(ctx, e.endpoint, *execution.Client)
	if err != nil {
		return nil, err
	}

	sent, err := service.Users.Messages.Send(userID, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(buildMessage(p))),
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify(execution.Client.Credential.ID, "send email", err)
	}

	return map[string]any{
		"message_id": sent.Id,
		"thread_id":  sent.ThreadId,
	}, nil
}

func buildMessage(p SendEmailParams) string {
	contentType := "text/plain"
	if p.BodyType == "html" {
		contentType = "text/html"
	}

	var headers []string
	headers = append(headers, fmt.Sprintf("To: %s", p.To))

	if p.Cc != "" {
		headers = append(headers, fmt.Sprintf("Cc: %s", p.Cc))
	}

	if p.Bcc != "" {
		headers = append(headers, fmt.Sprintf("Bcc: %s", p.Bcc))
	}

	headers = append(headers, fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", p.Subject)))
	headers = append(headers, "MIME-Version: 1.0")
	headers = append(headers, fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"", contentType))
	headers = append(headers, "")
	headers = append(headers, p.Body)

	return strings.Join(headers, "\r\n")
}
