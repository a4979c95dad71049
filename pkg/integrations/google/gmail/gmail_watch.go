package gmail

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/gmail/v1"

	"github.com/flowbaker/automations/pkg/domain"
)

const watchStateKey = "gmail:watch"

var ErrNoCredential = errors.New("no gmail credential resolved for workflow")

// WatchState is the mailbox push subscription of a credential.
type WatchState struct {
	Topic     string    `json:"topic"`
	HistoryID uint64    `json:"history_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type WatchManagerDependencies struct {
	Credentials   domain.CredentialStore
	Authenticator domain.Authenticator
	// TopicName is the Pub/Sub topic Gmail publishes to. Push is disabled
	// when empty and new_email falls back to polling only.
	TopicName     string
	RenewalWindow time.Duration
	Endpoint      string
}

// WatchManager issues, stops and renews mailbox watch subscriptions.
type WatchManager struct {
	credentials   domain.CredentialStore
	authenticator domain.Authenticator
	topicName     string
	renewalWindow time.Duration
	endpoint      string
	now           func() time.Time
}

func NewWatchManager(deps WatchManagerDependencies) *WatchManager {
	window := deps.RenewalWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	return &WatchManager{
		credentials:   deps.Credentials,
		authenticator: deps.Authenticator,
		topicName:     deps.TopicName,
		renewalWindow: window,
		endpoint:      deps.Endpoint,
		now:           time.Now,
	}
}

func (m *WatchManager) Enabled() bool {
	return m.topicName != "" && m.credentials != nil
}

// Watch (re)issues the subscription and stores it under the credential's
// polling state. The history cursor is seeded too when the credential has
// none, so the first notification already has a baseline.
func (m *WatchManager) Watch(ctx context.Context, credential domain.Credential) (WatchState, error) {
	authorized, err := domain.AuthorizeCredential(ctx, m.credentials, m.authenticator, credential)
	if err != nil {
		return WatchState{}, err
	}

	service, err := newService(ctx, m.endpoint, authorized)
	if err != nil {
		return WatchState{}, err
	}

	response, err := service.Users.Watch(userID, &gmail.WatchRequest{
		TopicName: m.topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return WatchState{}, classify(credential.ID, "watch mailbox", err)
	}

	state := WatchState{
		Topic:     m.topicName,
		HistoryID: response.HistoryId,
		ExpiresAt: time.UnixMilli(response.Expiration).UTC(),
	}

	changes := domain.PollingState{}
	if err := changes.Encode(watchStateKey, state); err != nil {
		return WatchState{}, err
	}

	if _, ok := credential.PollingState[historyCursorKey]; !ok {
		if err := changes.Encode(historyCursorKey, HistoryCursor{HistoryID: response.HistoryId}); err != nil {
			return WatchState{}, err
		}
	}

	if err := m.credentials.UpdatePollingState(ctx, credential.ID, changes); err != nil {
		return WatchState{}, fmt.Errorf("failed to store watch state: %w", err)
	}

	log.Info().
		Str("credential_id", credential.ID).
		Time("expires_at", state.ExpiresAt).
		Msg("Gmail watch issued")

	return state, nil
}

func (m *WatchManager) Stop(ctx context.Context, credential domain.Credential) error {
	authorized, err := domain.AuthorizeCredential(ctx, m.credentials, m.authenticator, credential)
	if err != nil {
		return err
	}

	service, err := newService(ctx, m.endpoint, authorized)
	if err != nil {
		return err
	}

	if err := service.Users.Stop(userID).Context(ctx).Do(); err != nil {
		return classify(credential.ID, "stop watch", err)
	}

	return nil
}

// NeedsRenewal reports whether the credential has no live watch or one that
// expires inside the renewal window.
func (m *WatchManager) NeedsRenewal(credential domain.Credential) bool {
	var state WatchState

	found, err := credential.PollingState.Decode(watchStateKey, &state)
	if err != nil || !found {
		return true
	}

	if state.Topic != m.topicName {
		return true
	}

	return state.ExpiresAt.Sub(m.now()) < m.renewalWindow
}

// ResolveCredential returns the credential a registration runs with: the
// explicit one when set, otherwise the owner's most recently updated one.
func (m *WatchManager) ResolveCredential(ctx context.Context, ownerID, credentialID string) (domain.Credential, error) {
	credentials, err := m.credentials.ListCredentialsByOwners(ctx, domain.IntegrationType_Gmail, []string{ownerID})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to list gmail credentials: %w", err)
	}

	if credentialID != "" {
		explicit, err := m.credentials.GetCredentialsByIDs(ctx, []string{credentialID})
		if err != nil {
			return domain.Credential{}, fmt.Errorf("failed to load credential: %w", err)
		}

		credentials = append(credentials, explicit...)
	}

	credential, ok := domain.NewCredentialSet(credentials).Resolve(ownerID, credentialID)
	if !ok {
		return domain.Credential{}, ErrNoCredential
	}

	return credential, nil
}

type MailboxTriggerDependencies struct {
	Registrations domain.RegistrationStore
	Validator     *domain.SchemaValidator
	Watches       *WatchManager
}

// MailboxTrigger is polled, and additionally keeps a mailbox watch per
// credential so Pub/Sub notifications can run a pass immediately.
type MailboxTrigger struct {
	*domain.BaseTrigger

	watches *WatchManager
}

func NewMailboxTrigger(deps MailboxTriggerDependencies) *MailboxTrigger {
	return &MailboxTrigger{
		BaseTrigger: domain.NewBaseTrigger(domain.BaseTriggerDependencies{
			Descriptor:    NewEmailTrigger,
			Registrations: deps.Registrations,
			Validator:     deps.Validator,
		}),
		watches: deps.Watches,
	}
}

func (t *MailboxTrigger) Register(ctx context.Context, params domain.RegisterParams) (domain.SetupResult, error) {
	if _, err := t.BaseTrigger.Register(ctx, params); err != nil {
		return domain.SetupResult{}, err
	}

	if t.watches == nil || !t.watches.Enabled() {
		return domain.SetupResult{}, nil
	}

	credential, err := t.watches.ResolveCredential(ctx, params.OwnerID, params.CredentialID)
	if err != nil {
		return domain.SetupFailed(NewEmailTrigger, params.WorkflowID, err), nil
	}

	if !t.watches.NeedsRenewal(credential) {
		return domain.SetupResult{}, nil
	}

	if _, err := t.watches.Watch(ctx, credential); err != nil {
		return domain.SetupFailed(NewEmailTrigger, params.WorkflowID, err), nil
	}

	return domain.SetupResult{}, nil
}

// Unregister stops the mailbox watch once no other workflow uses the same
// credential.
func (t *MailboxTrigger) Unregister(ctx context.Context, workflowID string) domain.SetupResult {
	registration, found := t.Registration(workflowID)

	t.BaseTrigger.Unregister(ctx, workflowID)

	if !found || t.watches == nil || !t.watches.Enabled() {
		return domain.SetupResult{}
	}

	credential, err := t.watches.ResolveCredential(ctx, registration.OwnerID, registration.CredentialID)
	if err != nil {
		return domain.SetupFailed(NewEmailTrigger, workflowID, err)
	}

	for otherID, other := range t.Registrations() {
		otherCredential, err := t.watches.ResolveCredential(ctx, other.OwnerID, other.CredentialID)
		if err == nil && otherCredential.ID == credential.ID {
			log.Debug().Str("workflow_id", otherID).Str("credential_id", credential.ID).Msg("Keeping gmail watch, still in use")
			return domain.SetupResult{}
		}
	}

	if err := t.watches.Stop(ctx, credential); err != nil {
		return domain.SetupFailed(NewEmailTrigger, workflowID, err)
	}

	return domain.SetupResult{}
}

// RenewalSweep periodically re-issues watches that are about to expire.
type RenewalSweep struct {
	trigger  *MailboxTrigger
	watches  *WatchManager
	interval time.Duration

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewRenewalSweep(trigger *MailboxTrigger, watches *WatchManager, interval time.Duration) *RenewalSweep {
	if interval <= 0 {
		interval = time.Hour
	}

	return &RenewalSweep{trigger: trigger, watches: watches, interval: interval}
}

func (s *RenewalSweep) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil || !s.watches.Enabled() {
		return
	}

	s.scheduler = cron.New()
	s.scheduler.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.Run(ctx) }))
	s.scheduler.Start()

	log.Info().Dur("interval", s.interval).Msg("Gmail watch renewal sweep started")
}

func (s *RenewalSweep) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	ctx := s.scheduler.Stop()
	s.scheduler = nil

	return ctx
}

// Run renews every credential whose watch expires within the window. A
// failure is logged for each workflow of that credential and does not stop
// the others.
func (s *RenewalSweep) Run(ctx context.Context) int {
	registrations := s.trigger.Registrations()

	workflowIDs := make([]string, 0, len(registrations))
	for workflowID := range registrations {
		workflowIDs = append(workflowIDs, workflowID)
	}

	sort.Strings(workflowIDs)

	credentials := map[string]domain.Credential{}
	workflowsByCredential := map[string][]string{}

	for _, workflowID := range workflowIDs {
		registration := registrations[workflowID]

		credential, err := s.watches.ResolveCredential(ctx, registration.OwnerID, registration.CredentialID)
		if err != nil {
			log.Warn().Err(err).Str("workflow_id", workflowID).Msg("Skipping gmail watch renewal")
			continue
		}

		credentials[credential.ID] = credential
		workflowsByCredential[credential.ID] = append(workflowsByCredential[credential.ID], workflowID)
	}

	renewed := 0

	for credentialID, credential := range credentials {
		if !s.watches.NeedsRenewal(credential) {
			continue
		}

		if _, err := s.watches.Watch(ctx, credential); err != nil {
			for _, workflowID := range workflowsByCredential[credentialID] {
				log.Error().Err(err).Str("workflow_id", workflowID).Str("credential_id", credentialID).Msg("Failed to renew gmail watch")
			}
			continue
		}

		renewed++
	}

	return renewed
}
