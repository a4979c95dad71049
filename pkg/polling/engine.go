package polling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type EngineDependencies struct {
	Provider      domain.IntegrationType
	Interval      time.Duration
	Registrations domain.RegistrationStore
	Workflows     domain.WorkflowStore
	Credentials   domain.CredentialStore
	Authenticator domain.Authenticator
	Dispatcher    domain.WorkflowDispatcher
	Checkers      []Checker
}

// Engine runs the reconciliation loop of one provider. Passes run
// concurrently across credentials and never twice at once for the same one.
type Engine struct {
	provider      domain.IntegrationType
	interval      time.Duration
	registrations domain.RegistrationStore
	workflows     domain.WorkflowStore
	credentials   domain.CredentialStore
	authenticator domain.Authenticator
	dispatcher    domain.WorkflowDispatcher
	checkers      []Checker

	inProgress *credentialGuard

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewEngine(deps EngineDependencies) *Engine {
	return &Engine{
		provider:      deps.Provider,
		interval:      deps.Interval,
		registrations: deps.Registrations,
		workflows:     deps.Workflows,
		credentials:   deps.Credentials,
		authenticator: deps.Authenticator,
		dispatcher:    deps.Dispatcher,
		checkers:      deps.Checkers,
		inProgress:    newCredentialGuard(),
	}
}

func (e *Engine) Provider() domain.IntegrationType {
	return e.provider
}

// Start schedules the recurring tick. Calling Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduler != nil {
		return
	}

	scheduler := cron.New()
	scheduler.Schedule(cron.Every(e.interval), cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		e.Tick(ctx)
	})))
	scheduler.Start()

	e.scheduler = scheduler

	log.Info().Str("provider", string(e.provider)).Dur("interval", e.interval).Msg("Polling engine started")
}

// Stop cancels the recurring tick. In-flight passes are left to finish; the
// returned context is done once they have.
func (e *Engine) Stop() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scheduler == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	done := e.scheduler.Stop()
	e.scheduler = nil

	log.Info().Str("provider", string(e.provider)).Msg("Polling engine stopped")

	return done
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scheduler != nil
}

// Tick runs one reconciliation pass over every credential with registrations.
func (e *Engine) Tick(ctx context.Context) {
	e.reconcile(ctx, "")
}

// ReconcileCredential runs a pass for a single credential outside the schedule.
func (e *Engine) ReconcileCredential(ctx context.Context, credentialID string) {
	e.reconcile(ctx, credentialID)
}

type pendingRegistration struct {
	triggerID    string
	registration domain.Registration
}

type credentialBucket struct {
	credential       domain.Credential
	targetsByTrigger map[string][]Target
}

func (e *Engine) reconcile(ctx context.Context, onlyCredentialID string) {
	logger := log.With().Str("provider", string(e.provider)).Logger()

	pending := e.collectRegistrations()
	if len(pending) == 0 {
		return
	}

	workflowIDs := make([]string, 0, len(pending))
	seen := map[string]struct{}{}
	for _, p := range pending {
		if _, ok := seen[p.registration.WorkflowID]; ok {
			continue
		}

		seen[p.registration.WorkflowID] = struct{}{}
		workflowIDs = append(workflowIDs, p.registration.WorkflowID)
	}

	workflows, err := e.workflows.GetWorkflowsByIDs(ctx, workflowIDs)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load workflows for polling")
		return
	}

	workflowsByID := make(map[string]domain.Workflow, len(workflows))
	for _, workflow := range workflows {
		workflowsByID[workflow.ID] = workflow
	}

	credentialSet, err := e.loadCredentials(ctx, pending, workflowsByID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load credentials for polling")
		return
	}

	buckets := map[string]*credentialBucket{}

	for _, p := range pending {
		workflow, ok := workflowsByID[p.registration.WorkflowID]
		if !ok {
			logger.Debug().Str("workflow_id", p.registration.WorkflowID).Msg("Dropping registration of deleted workflow")
			continue
		}

		credential, ok := credentialSet.Resolve(workflow.OwnerID, p.registration.CredentialID)
		if !ok {
			logger.Debug().
				Str("workflow_id", workflow.ID).
				Str("user_id", workflow.OwnerID).
				Str("trigger_id", p.triggerID).
				Msg("No credential resolved, skipping workflow this pass")
			continue
		}

		if onlyCredentialID != "" && credential.ID != onlyCredentialID {
			continue
		}

		bucket, ok := buckets[credential.ID]
		if !ok {
			bucket = &credentialBucket{
				credential:       credential,
				targetsByTrigger: map[string][]Target{},
			}
			buckets[credential.ID] = bucket
		}

		bucket.targetsByTrigger[p.triggerID] = append(bucket.targetsByTrigger[p.triggerID], Target{
			TriggerID:  p.triggerID,
			WorkflowID: workflow.ID,
			OwnerID:    workflow.OwnerID,
			Config:     p.registration.Config,
		})
	}

	var wg sync.WaitGroup

	for _, bucket := range buckets {
		wg.Add(1)

		go func(bucket *credentialBucket) {
			defer wg.Done()

			e.runCredential(ctx, bucket)
		}(bucket)
	}

	wg.Wait()
}

func (e *Engine) collectRegistrations() []pendingRegistration {
	pending := []pendingRegistration{}

	for _, checker := range e.checkers {
		for _, triggerID := range checker.TriggerIDs() {
			registrations := e.registrations.List(domain.CapabilityKey(e.provider, triggerID))

			for _, registration := range registrations {
				pending = append(pending, pendingRegistration{
					triggerID:    triggerID,
					registration: registration,
				})
			}
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].registration.WorkflowID != pending[j].registration.WorkflowID {
			return pending[i].registration.WorkflowID < pending[j].registration.WorkflowID
		}

		return pending[i].triggerID < pending[j].triggerID
	})

	return pending
}

func (e *Engine) loadCredentials(ctx context.Context, pending []pendingRegistration, workflowsByID map[string]domain.Workflow) (*domain.CredentialSet, error) {
	ownerSet := map[string]struct{}{}
	explicitSet := map[string]struct{}{}

	for _, p := range pending {
		workflow, ok := workflowsByID[p.registration.WorkflowID]
		if !ok {
			continue
		}

		ownerSet[workflow.OwnerID] = struct{}{}

		if p.registration.CredentialID != "" {
			explicitSet[p.registration.CredentialID] = struct{}{}
		}
	}

	if len(ownerSet) == 0 {
		return domain.NewCredentialSet(nil), nil
	}

	credentials, err := e.credentials.ListCredentialsByOwners(ctx, e.provider, setKeys(ownerSet))
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	loaded := map[string]struct{}{}
	for _, credential := range credentials {
		loaded[credential.ID] = struct{}{}
	}

	missing := []string{}
	for id := range explicitSet {
		if _, ok := loaded[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		explicit, err := e.credentials.GetCredentialsByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials by id: %w", err)
		}

		for _, credential := range explicit {
			if credential.Provider == e.provider {
				credentials = append(credentials, credential)
			}
		}
	}

	return domain.NewCredentialSet(credentials), nil
}

func (e *Engine) runCredential(ctx context.Context, bucket *credentialBucket) {
	credentialID := bucket.credential.ID

	logger := log.With().
		Str("provider", string(e.provider)).
		Str("credential_id", credentialID).
		Str("user_id", bucket.credential.OwnerID).
		Logger()

	if !e.inProgress.TryAcquire(credentialID) {
		logger.Debug().Msg("Credential pass still running, skipping this tick")
		return
	}
	defer e.inProgress.Release(credentialID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Recovered from panic in polling pass")
		}
	}()

	// The bucket was loaded before the credential was acquired, so its cursor
	// and tokens may predate a pass that finished in between.
	credential, err := e.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reload credential")
		return
	}

	if !credential.IsValid {
		logger.Debug().Msg("Credential became invalid, skipping pass")
		return
	}

	client, err := domain.AuthorizeCredential(ctx, e.credentials, e.authenticator, credential)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to authorize credential")
		return
	}

	state := credential.PollingState
	if state == nil {
		state = domain.PollingState{}
	}

	changes := domain.PollingState{}

	for _, checker := range e.checkers {
		targets := []Target{}
		for _, triggerID := range checker.TriggerIDs() {
			targets = append(targets, bucket.targetsByTrigger[triggerID]...)
		}

		if len(targets) == 0 {
			continue
		}

		for _, check := range checker.Plan(targets) {
			checkChanges, err := e.runCheck(ctx, checker, client, check, state)
			if err != nil {
				logger.Error().Err(err).Str("cursor_key", check.CursorKey).Msg("Polling check failed")
				continue
			}

			for key, value := range checkChanges {
				changes[key] = value
			}
		}
	}

	if len(changes) == 0 {
		return
	}

	if err := e.credentials.UpdatePollingState(ctx, credentialID, changes); err != nil {
		logger.Error().Err(err).Msg("Failed to persist polling state")
	}
}

func (e *Engine) runCheck(ctx context.Context, checker Checker, client domain.AuthorizedClient, check Check, state domain.PollingState) (changes domain.PollingState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in check %s: %v", check.CursorKey, r)
		}
	}()

	return checker.Run(ctx, client, check, state, e.dispatch)
}

func (e *Engine) dispatch(ctx context.Context, target Target, payload map[string]any) error {
	execution, err := e.dispatcher.TriggerWorkflowExecution(ctx, target.WorkflowID, payload)
	if err != nil {
		return err
	}

	log.Debug().
		Str("execution_id", execution.ID).
		Str("provider", string(e.provider)).
		Str("trigger_id", target.TriggerID).
		Str("workflow_id", target.WorkflowID).
		Msg("Dispatched workflow execution")

	return nil
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
