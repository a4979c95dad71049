package resendintegration

import (
	"context"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/flowbaker/automations/pkg/domain"
)

const DefaultAPIBaseURL = "https://api.resend.com/"

type SendEmailParams struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to"`
}

type actionExecutor struct {
	baseURL *url.URL
}

func (e *actionExecutor) Execute(ctx context.Context, execution domain.ActionExecution) (map[string]any, error) {
	if execution.Client == nil {
		return nil, domain.NewValidationError("resend:send_email", domain.FieldIssue{Field: "credential_id", Message: "a Resend API key credential is required"})
	}

	var p SendEmailParams
	if err := domain.BindConfig(execution.Config, &p); err != nil {
		return nil, err
	}

	request, err := newSendEmailRequest(p)
	if err != nil {
		return nil, err
	}

	client := resend.NewCustomClient(execution.Client.HTTPClient, execution.Client.Credential.AccessToken)
	client.BaseURL = e.baseURL

	sent, err := client.Emails.SendWithContext(ctx, request)
	if err != nil {
		return nil, domain.NewExternalProviderError(domain.IntegrationType_Resend, "send email", err)
	}

	return map[string]any{
		"id": sent.Id,
		"to": request.To,
	}, nil
}

func newSendEmailRequest(p SendEmailParams) (*resend.SendEmailRequest, error) {
	recipients := splitAddresses(p.To)
	if len(recipients) == 0 {
		return nil, domain.NewValidationError("resend:send_email", domain.FieldIssue{Field: "to", Message: "at least one recipient is required"})
	}

	if p.HTML == "" && p.Text == "" {
		return nil, domain.NewValidationError("resend:send_email", domain.FieldIssue{Field: "html", Message: "either html or text body is required"})
	}

	return &resend.SendEmailRequest{
		From:    p.From,
		To:      recipients,
		Subject: p.Subject,
		Html:    p.HTML,
		Text:    p.Text,
		ReplyTo: p.ReplyTo,
	}, nil
}

func splitAddresses(raw string) []string {
	addresses := []string{}

	for _, address := range strings.Split(raw, ",") {
		address = strings.TrimSpace(address)
		if address != "" {
			addresses = append(addresses, address)
		}
	}

	return addresses
}
