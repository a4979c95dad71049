package ingestion

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/pkg/domain"
)

// Event is a generic inbound push. EventID is the provider's stable id of the
// event and is required.
type Event struct {
	EventID string         `json:"event_id"`
	Source  string         `json:"source"`
	Data    map[string]any `json:"data"`
}

type Result struct {
	EventID    string   `json:"event_id"`
	Duplicate  bool     `json:"duplicate"`
	Matched    []string `json:"matched"`
	Executions []string `json:"executions"`
	Failed     []string `json:"failed,omitempty"`
}

// Normalizer converts a provider's raw push body into the trigger payload.
type Normalizer func(data map[string]any) (map[string]any, error)

// CredentialReconciler runs an immediate polling pass for one credential.
type CredentialReconciler interface {
	ReconcileCredential(ctx context.Context, credentialID string)
}

type ReceiverDependencies struct {
	Triggers     *domain.TriggerRegistry
	Dispatcher   domain.WorkflowDispatcher
	Deduplicator Deduplicator
	Credentials  domain.CredentialStore
	// Normalizers are keyed by trigger key, e.g. "telegram:new_message".
	Normalizers map[string]Normalizer
	Reconcilers map[domain.IntegrationType]CredentialReconciler
}

// Receiver turns inbound notifications into dispatches without waiting for
// a polling tick.
type Receiver struct {
	triggers     *domain.TriggerRegistry
	dispatcher   domain.WorkflowDispatcher
	deduplicator Deduplicator
	credentials  domain.CredentialStore
	normalizers  map[string]Normalizer
	reconcilers  map[domain.IntegrationType]CredentialReconciler
}

func NewReceiver(deps ReceiverDependencies) *Receiver {
	deduplicator := deps.Deduplicator
	if deduplicator == nil {
		deduplicator = NewMemoryDeduplicator(DefaultDedupeTTL)
	}

	return &Receiver{
		triggers:     deps.Triggers,
		dispatcher:   deps.Dispatcher,
		deduplicator: deduplicator,
		credentials:  deps.Credentials,
		normalizers:  deps.Normalizers,
		reconcilers:  deps.Reconcilers,
	}
}

// Ingest dispatches one pushed event to every registered workflow of the
// trigger whose filters match. Malformed events are rejected before any side
// effect. A redelivered event id is acknowledged without dispatching again.
func (r *Receiver) Ingest(ctx context.Context, provider domain.IntegrationType, triggerID string, event Event) (Result, error) {
	event.EventID = strings.TrimSpace(event.EventID)
	if event.EventID == "" {
		return Result{}, domain.NewValidationError("push event", domain.FieldIssue{Field: "event_id", Message: "is required"})
	}

	trigger, err := r.triggers.Get(provider, triggerID)
	if err != nil {
		return Result{}, err
	}

	descriptor := trigger.Descriptor()

	pushTrigger, ok := trigger.(domain.PushTrigger)
	if !ok || !descriptor.AcceptsPush {
		return Result{}, domain.NewValidationError("push event", domain.FieldIssue{Field: "trigger", Message: fmt.Sprintf("%s does not accept push events", descriptor.Key())})
	}

	payload, err := r.normalize(descriptor.Key(), event)
	if err != nil {
		return Result{}, err
	}

	result := Result{EventID: event.EventID, Matched: []string{}, Executions: []string{}}

	dedupeKey := fmt.Sprintf("%s:%s", descriptor.Key(), event.EventID)

	claimed, err := r.deduplicator.Claim(ctx, dedupeKey)
	if err != nil {
		return Result{}, err
	}

	if !claimed {
		log.Debug().Str("trigger", descriptor.Key()).Str("event_id", event.EventID).Msg("Skipping duplicate push event")

		result.Duplicate = true
		return result, nil
	}

	result.Matched = pushTrigger.MatchingWorkflows(payload)

	retryable := false

	for _, workflowID := range result.Matched {
		execution, err := r.dispatcher.TriggerWorkflowExecution(ctx, workflowID, payload)
		if err != nil {
			log.Error().Err(err).Str("workflow_id", workflowID).Str("event_id", event.EventID).Msg("Failed to dispatch push event")

			result.Failed = append(result.Failed, workflowID)
			if !isPermanent(err) {
				retryable = true
			}
			continue
		}

		result.Executions = append(result.Executions, execution.ID)
	}

	if retryable && len(result.Executions) == 0 {
		if err := r.deduplicator.Release(ctx, dedupeKey); err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to release push event claim")
		}

		return result, fmt.Errorf("failed to dispatch event %s to any workflow", event.EventID)
	}

	return result, nil
}

func (r *Receiver) normalize(triggerKey string, event Event) (map[string]any, error) {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}

	if normalizer, ok := r.normalizers[triggerKey]; ok {
		normalized, err := normalizer(data)
		if err != nil {
			return nil, err
		}

		data = normalized
	}

	payload := maps.Clone(data)
	if payload == nil {
		payload = map[string]any{}
	}

	payload["event_id"] = event.EventID

	if event.Source != "" {
		payload["source"] = event.Source
	}

	return payload, nil
}

// ReconcileAccount runs an immediate pass for every credential of the
// external account, e.g. after a mailbox change notification. It returns the
// number of credentials reconciled.
func (r *Receiver) ReconcileAccount(ctx context.Context, provider domain.IntegrationType, accountID string) (int, error) {
	reconciler, ok := r.reconcilers[provider]
	if !ok {
		return 0, fmt.Errorf("%w: no polling engine for %s", domain.ErrNotFound, provider)
	}

	credentials, err := r.credentials.ListCredentialsByAccount(ctx, provider, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list credentials for account: %w", err)
	}

	reconciled := 0
	for _, credential := range credentials {
		if !credential.IsValid {
			continue
		}

		reconciler.ReconcileCredential(ctx, credential.ID)
		reconciled++
	}

	if reconciled == 0 {
		log.Debug().Str("provider", string(provider)).Str("account_id", accountID).Msg("Push notification for unknown account")
	}

	return reconciled, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrNotActive) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrUnsupportedAction)
}
