package controllers

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/flowbaker/automations/pkg/ingestion"
	"github.com/flowbaker/automations/pkg/integrations/google/gmail"
)

type WebhookControllerDependencies struct {
	Receiver *ingestion.Receiver
	// GmailPushToken must match the token query parameter of Pub/Sub pushes.
	GmailPushToken string
}

type WebhookController struct {
	receiver       *ingestion.Receiver
	gmailPushToken string
}

func NewWebhookController(deps WebhookControllerDependencies) *WebhookController {
	return &WebhookController{
		receiver:       deps.Receiver,
		gmailPushToken: deps.GmailPushToken,
	}
}

// HandleEvent ingests a generic push event for /webhooks/:provider/:trigger.
func (c *WebhookController) HandleEvent(ctx fiber.Ctx) error {
	var event ingestion.Event

	if err := ctx.Bind().Body(&event); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	provider := domain.IntegrationType(ctx.Params("provider"))
	triggerID := ctx.Params("trigger")

	result, err := c.receiver.Ingest(ctx.RequestCtx(), provider, triggerID, event)
	if err != nil {
		if domain.IsValidationError(err) || domain.IsNotFoundError(err) {
			return respondError(ctx, err)
		}

		log.Error().
			Err(err).
			Str("provider", string(provider)).
			Str("trigger_id", triggerID).
			Str("event_id", event.EventID).
			Msg("Failed to ingest push event")

		return fiber.NewError(fiber.StatusServiceUnavailable, "Event was not dispatched, retry later")
	}

	return ctx.Status(fiber.StatusAccepted).JSON(result)
}

// HandleGmailPush runs an immediate pass for the mailbox named in a Pub/Sub
// change notification.
func (c *WebhookController) HandleGmailPush(ctx fiber.Ctx) error {
	if c.gmailPushToken == "" || subtle.ConstantTimeCompare([]byte(ctx.Query("token")), []byte(c.gmailPushToken)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid push token")
	}

	notification, err := gmail.ParseNotification(ctx.Body())
	if err != nil {
		if errors.Is(err, gmail.ErrMalformedNotification) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return respondError(ctx, err)
	}

	reconciled, err := c.receiver.ReconcileAccount(ctx.RequestCtx(), domain.IntegrationType_Gmail, notification.EmailAddress)
	if err != nil {
		return respondError(ctx, err)
	}

	log.Debug().
		Str("provider", string(domain.IntegrationType_Gmail)).
		Str("message_id", notification.MessageID).
		Uint64("history_id", notification.HistoryID).
		Int("credentials", reconciled).
		Msg("Gmail push notification handled")

	return ctx.SendStatus(fiber.StatusNoContent)
}
