package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/domain"
)

var (
	pushDescriptor = domain.Descriptor{
		Provider:    domain.IntegrationType_Telegram,
		ID:          "new_message",
		Name:        "New Message",
		AcceptsPush: true,
		ConfigProperties: []domain.NodeProperty{
			{Key: "text", Name: "Text", Type: domain.NodePropertyType_String, Filter: true},
		},
	}

	pollOnlyDescriptor = domain.Descriptor{
		Provider: domain.IntegrationType_Github,
		ID:       "new_star",
		Name:     "New Star",
	}
)

type recordingDispatcher struct {
	mu       sync.Mutex
	payloads map[string][]map[string]any
	errs     map[string]error
}

func (d *recordingDispatcher) TriggerWorkflowExecution(ctx context.Context, workflowID string, triggerData map[string]any) (domain.Execution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.errs[workflowID]; err != nil {
		return domain.Execution{}, err
	}

	if d.payloads == nil {
		d.payloads = map[string][]map[string]any{}
	}

	d.payloads[workflowID] = append(d.payloads[workflowID], triggerData)

	return domain.Execution{ID: "exec-" + workflowID}, nil
}

type receiverFixture struct {
	receiver   *Receiver
	dispatcher *recordingDispatcher
	trigger    *domain.BaseTrigger
	store      *memory.Store
}

func newReceiverFixture(t *testing.T, normalizers map[string]Normalizer) *receiverFixture {
	t.Helper()

	registrations := domain.NewInMemoryRegistrationStore()

	trigger := domain.NewBaseTrigger(domain.BaseTriggerDependencies{Descriptor: pushDescriptor, Registrations: registrations})

	triggers := domain.NewTriggerRegistry()
	triggers.Register(trigger)
	triggers.Register(domain.NewBaseTrigger(domain.BaseTriggerDependencies{Descriptor: pollOnlyDescriptor, Registrations: registrations}))

	f := &receiverFixture{
		dispatcher: &recordingDispatcher{errs: map[string]error{}},
		trigger:    trigger,
		store:      memory.New(),
	}

	f.receiver = NewReceiver(ReceiverDependencies{
		Triggers:     triggers,
		Dispatcher:   f.dispatcher,
		Deduplicator: NewMemoryDeduplicator(0),
		Credentials:  f.store,
		Normalizers:  normalizers,
	})

	return f
}

func (f *receiverFixture) register(t *testing.T, workflowID string, config map[string]any) {
	t.Helper()

	_, err := f.trigger.Register(context.Background(), domain.RegisterParams{WorkflowID: workflowID, Config: config})
	require.NoError(t, err)
}

func TestReceiver_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches to matching workflows with event metadata", func(t *testing.T) {
		f := newReceiverFixture(t, nil)
		f.register(t, "w1", map[string]any{"text": "deploy"})
		f.register(t, "w2", map[string]any{"text": "rollback"})
		f.register(t, "w3", map[string]any{})

		result, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", Event{
			EventID: "evt-1",
			Source:  "webhook",
			Data:    map[string]any{"text": "Deploy finished"},
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"w1", "w3"}, result.Matched)
		assert.Equal(t, []string{"exec-w1", "exec-w3"}, result.Executions)
		assert.False(t, result.Duplicate)

		require.Len(t, f.dispatcher.payloads["w1"], 1)
		assert.Equal(t, "evt-1", f.dispatcher.payloads["w1"][0]["event_id"])
		assert.Equal(t, "webhook", f.dispatcher.payloads["w1"][0]["source"])
	})

	t.Run("redelivered event is acknowledged once", func(t *testing.T) {
		f := newReceiverFixture(t, nil)
		f.register(t, "w1", nil)

		event := Event{EventID: "evt-1", Data: map[string]any{"text": "hi"}}

		_, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", event)
		require.NoError(t, err)

		result, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", event)
		require.NoError(t, err)

		assert.True(t, result.Duplicate)
		assert.Len(t, f.dispatcher.payloads["w1"], 1)
	})

	t.Run("transient failure releases the event for redelivery", func(t *testing.T) {
		f := newReceiverFixture(t, nil)
		f.register(t, "w1", nil)
		f.dispatcher.errs["w1"] = errors.New("connection reset")

		event := Event{EventID: "evt-1", Data: map[string]any{}}

		_, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", event)
		require.Error(t, err)

		delete(f.dispatcher.errs, "w1")

		result, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", event)
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.Len(t, f.dispatcher.payloads["w1"], 1)
	})

	t.Run("inactive workflow does not fail the event", func(t *testing.T) {
		f := newReceiverFixture(t, nil)
		f.register(t, "w1", nil)
		f.register(t, "w2", nil)
		f.dispatcher.errs["w1"] = domain.ErrNotActive

		result, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", Event{EventID: "evt-1"})
		require.NoError(t, err)

		assert.Equal(t, []string{"w1"}, result.Failed)
		assert.Equal(t, []string{"exec-w2"}, result.Executions)
	})

	t.Run("normalizer shapes the payload", func(t *testing.T) {
		f := newReceiverFixture(t, map[string]Normalizer{
			pushDescriptor.Key(): func(data map[string]any) (map[string]any, error) {
				return map[string]any{"text": data["message"]}, nil
			},
		})
		f.register(t, "w1", map[string]any{"text": "hello"})

		result, err := f.receiver.Ingest(ctx, domain.IntegrationType_Telegram, "new_message", Event{
			EventID: "evt-1",
			Data:    map[string]any{"message": "hello there"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"w1"}, result.Matched)
		assert.Equal(t, "hello there", f.dispatcher.payloads["w1"][0]["text"])
	})

	t.Run("rejected events", func(t *testing.T) {
		tests := []struct {
			name      string
			provider  domain.IntegrationType
			triggerID string
			event     Event
			target    error
		}{
			{
				name:      "missing event id",
				provider:  domain.IntegrationType_Telegram,
				triggerID: "new_message",
				event:     Event{EventID: "  "},
				target:    domain.ErrValidation,
			},
			{
				name:      "unknown trigger",
				provider:  domain.IntegrationType_Telegram,
				triggerID: "edited_message",
				event:     Event{EventID: "evt-1"},
				target:    domain.ErrNotFound,
			},
			{
				name:      "trigger without push support",
				provider:  domain.IntegrationType_Github,
				triggerID: "new_star",
				event:     Event{EventID: "evt-1"},
				target:    domain.ErrValidation,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newReceiverFixture(t, nil)
				f.register(t, "w1", nil)

				_, err := f.receiver.Ingest(ctx, tt.provider, tt.triggerID, tt.event)
				assert.ErrorIs(t, err, tt.target)
				assert.Empty(t, f.dispatcher.payloads)
			})
		}
	})
}

type recordingReconciler struct {
	credentialIDs []string
}

func (r *recordingReconciler) ReconcileCredential(ctx context.Context, credentialID string) {
	r.credentialIDs = append(r.credentialIDs, credentialID)
}

func TestReceiver_ReconcileAccount(t *testing.T) {
	ctx := context.Background()

	f := newReceiverFixture(t, nil)

	reconciler := &recordingReconciler{}
	f.receiver.reconcilers = map[domain.IntegrationType]CredentialReconciler{domain.IntegrationType_Gmail: reconciler}

	require.NoError(t, f.store.CreateCredential(ctx, domain.Credential{ID: "c1", Provider: domain.IntegrationType_Gmail, AccountID: "me@example.com", IsValid: true}))
	require.NoError(t, f.store.CreateCredential(ctx, domain.Credential{ID: "c2", Provider: domain.IntegrationType_Gmail, AccountID: "me@example.com"}))
	require.NoError(t, f.store.CreateCredential(ctx, domain.Credential{ID: "c3", Provider: domain.IntegrationType_Gmail, AccountID: "other@example.com", IsValid: true}))

	reconciled, err := f.receiver.ReconcileAccount(ctx, domain.IntegrationType_Gmail, "me@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, reconciled)
	assert.Equal(t, []string{"c1"}, reconciler.credentialIDs)

	_, err = f.receiver.ReconcileAccount(ctx, domain.IntegrationType_Slack, "me@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceiver_ReconcileAccountIgnoresAddressCase(t *testing.T) {
	ctx := context.Background()

	f := newReceiverFixture(t, nil)

	reconciler := &recordingReconciler{}
	f.receiver.reconcilers = map[domain.IntegrationType]CredentialReconciler{domain.IntegrationType_Gmail: reconciler}

	require.NoError(t, f.store.CreateCredential(ctx, domain.Credential{ID: "c1", Provider: domain.IntegrationType_Gmail, AccountID: "Jane.Doe@Example.com", IsValid: true}))

	reconciled, err := f.receiver.ReconcileAccount(ctx, domain.IntegrationType_Gmail, "jane.doe@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, reconciled)
	assert.Equal(t, []string{"c1"}, reconciler.credentialIDs)
}

func TestMemoryDeduplicator_Expiry(t *testing.T) {
	ctx := context.Background()

	dedupe := NewMemoryDeduplicator(0)

	claimed, err := dedupe.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = dedupe.Claim(ctx, "k")
	require.NoError(t, err)
	assert.False(t, claimed)

	later := dedupe.now().Add(DefaultDedupeTTL + 1)
	dedupe.now = func() time.Time { return later }

	claimed, err = dedupe.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, claimed)
}
