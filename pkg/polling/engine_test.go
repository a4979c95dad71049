package polling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowbaker/automations/internal/store/memory"
	"github.com/flowbaker/automations/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProvider domain.IntegrationType = "fake"

type fakeCursor struct {
	LastSeen int `json:"last_seen"`
}

type fakeItem struct {
	Seq int
}

type fakeAdapter struct {
	mu        sync.Mutex
	items     []fakeItem
	fetchErr  error
	block     chan struct{}
	entered   chan struct{}
	fetches   int32
	running   int32
	maxActive int32
}

func (a *fakeAdapter) setItems(items ...fakeItem) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.items = items
}

func (a *fakeAdapter) TriggerIDs() []string {
	return []string{"new_item"}
}

func (a *fakeAdapter) Plan(targets []Target) []Check {
	return SingleCheck("fake:new_item", targets)
}

func (a *fakeAdapter) Fetch(ctx context.Context, client domain.AuthorizedClient, check Check, cursor *fakeCursor) ([]fakeItem, error) {
	atomic.AddInt32(&a.fetches, 1)
	active := atomic.AddInt32(&a.running, 1)
	defer atomic.AddInt32(&a.running, -1)

	for {
		current := atomic.LoadInt32(&a.maxActive)
		if active <= current || atomic.CompareAndSwapInt32(&a.maxActive, current, active) {
			break
		}
	}

	if a.entered != nil {
		a.entered <- struct{}{}
	}

	if a.block != nil {
		<-a.block
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fetchErr != nil {
		return nil, a.fetchErr
	}

	return append([]fakeItem(nil), a.items...), nil
}

func (a *fakeAdapter) Seed(snapshot []fakeItem) fakeCursor {
	cursor := fakeCursor{}
	for _, item := range snapshot {
		if item.Seq > cursor.LastSeen {
			cursor.LastSeen = item.Seq
		}
	}

	return cursor
}

func (a *fakeAdapter) Diff(cursor fakeCursor, snapshot []fakeItem) []fakeItem {
	items := []fakeItem{}
	for _, item := range snapshot {
		if item.Seq > cursor.LastSeen {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })

	return items
}

func (a *fakeAdapter) Advance(cursor fakeCursor, snapshot []fakeItem, delivered []fakeItem, pending []fakeItem) fakeCursor {
	for _, item := range delivered {
		cursor.LastSeen = item.Seq
	}

	return cursor
}

func (a *fakeAdapter) Matches(item fakeItem, target Target) bool {
	return true
}

func (a *fakeAdapter) Payload(item fakeItem) map[string]any {
	return map[string]any{"seq": item.Seq}
}

type staticAuthenticator struct{}

func (staticAuthenticator) Authorize(ctx context.Context, credential domain.Credential) (domain.AuthorizedClient, error) {
	return domain.AuthorizedClient{Credential: credential}, nil
}

type dispatchCall struct {
	WorkflowID string
	Seq        int
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *recordingDispatcher) TriggerWorkflowExecution(ctx context.Context, workflowID string, triggerData map[string]any) (domain.Execution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return domain.Execution{}, d.err
	}

	d.calls = append(d.calls, dispatchCall{WorkflowID: workflowID, Seq: triggerData["seq"].(int)})

	return domain.Execution{ID: "exec"}, nil
}

func (d *recordingDispatcher) Calls() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]dispatchCall(nil), d.calls...)
}

type engineFixture struct {
	store         *memory.Store
	registrations domain.RegistrationStore
	adapter       *fakeAdapter
	dispatcher    *recordingDispatcher
	engine        *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		store:         memory.New(),
		registrations: domain.NewInMemoryRegistrationStore(),
		adapter:       &fakeAdapter{},
		dispatcher:    &recordingDispatcher{},
	}

	f.engine = NewEngine(EngineDependencies{
		Provider:      testProvider,
		Interval:      time.Hour,
		Registrations: f.registrations,
		Workflows:     f.store,
		Credentials:   f.store,
		Authenticator: staticAuthenticator{},
		Dispatcher:    f.dispatcher,
		Checkers:      []Checker{NewChecker[fakeCursor, []fakeItem, fakeItem](f.adapter)},
	})

	return f
}

func (f *engineFixture) addWorkflow(t *testing.T, id, ownerID string) {
	t.Helper()

	require.NoError(t, f.store.CreateWorkflow(context.Background(), domain.Workflow{ID: id, OwnerID: ownerID, IsActive: true}))
}

func (f *engineFixture) addCredential(t *testing.T, id, ownerID string, updatedAt int64) {
	t.Helper()

	require.NoError(t, f.store.CreateCredential(context.Background(), domain.Credential{
		ID:        id,
		OwnerID:   ownerID,
		Provider:  testProvider,
		IsValid:   true,
		UpdatedAt: time.Unix(updatedAt, 0),
	}))
}

func (f *engineFixture) register(workflowID, credentialID string) {
	f.registrations.Put(domain.CapabilityKey(testProvider, "new_item"), domain.Registration{
		WorkflowID:   workflowID,
		CredentialID: credentialID,
	})
}

func TestEngine_FirstRunSuppression(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1}, fakeItem{Seq: 2}, fakeItem{Seq: 3})
	f.engine.Tick(ctx)

	assert.Empty(t, f.dispatcher.Calls())

	credential, err := f.store.GetCredential(ctx, "c1")
	require.NoError(t, err)

	var cursor fakeCursor
	found, err := credential.PollingState.Decode("fake:new_item", &cursor)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, cursor.LastSeen)

	f.adapter.setItems(fakeItem{Seq: 1}, fakeItem{Seq: 2}, fakeItem{Seq: 3}, fakeItem{Seq: 4})
	f.engine.Tick(ctx)

	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 4}}, f.dispatcher.Calls())
}

func TestEngine_DispatchesOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	f.adapter.setItems(fakeItem{Seq: 3}, fakeItem{Seq: 2}, fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 2}, {WorkflowID: "w1", Seq: 3}}, f.dispatcher.Calls())
}

func TestEngine_SkipsTickWithoutRegistrations(t *testing.T) {
	f := newEngineFixture(t)

	f.engine.Tick(context.Background())

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.adapter.fetches))
}

func TestEngine_OwnershipGuard(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c-foreign", "u2", 900)
	f.register("w1", "c-foreign")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.adapter.fetches), "mismatched credential must never be used")

	foreign, err := f.store.GetCredential(ctx, "c-foreign")
	require.NoError(t, err)
	assert.Empty(t, foreign.PollingState)

	f.addCredential(t, "c-own", "u1", 100)
	f.engine.Tick(ctx)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.adapter.fetches))

	own, err := f.store.GetCredential(ctx, "c-own")
	require.NoError(t, err)
	assert.Contains(t, own.PollingState, "fake:new_item")
}

func TestEngine_OverlappingTicksSkipBusyCredential(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.block = make(chan struct{})
	f.adapter.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Tick(ctx)
	}()

	<-f.adapter.entered

	f.engine.Tick(ctx)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.adapter.fetches))

	close(f.adapter.block)
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.adapter.maxActive))

	f.adapter.block = nil
	f.adapter.entered = nil
	f.engine.Tick(ctx)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.adapter.fetches), "credential is released after the pass")
}

// pausingStore holds one ListCredentialsByOwners call after it has read the
// credentials, so the caller continues with what it loaded.
type pausingStore struct {
	*memory.Store

	mu      sync.Mutex
	pause   bool
	loaded  chan struct{}
	release chan struct{}
}

func (s *pausingStore) pauseNextList() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pause = true
	s.loaded = make(chan struct{})
	s.release = make(chan struct{})
}

func (s *pausingStore) ListCredentialsByOwners(ctx context.Context, provider domain.IntegrationType, ownerIDs []string) ([]domain.Credential, error) {
	credentials, err := s.Store.ListCredentialsByOwners(ctx, provider, ownerIDs)

	s.mu.Lock()
	pause, loaded, release := s.pause, s.loaded, s.release
	s.pause = false
	s.mu.Unlock()

	if pause {
		close(loaded)
		<-release
	}

	return credentials, err
}

func TestEngine_PassUsesCursorWrittenByOverlappingPass(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	store := &pausingStore{Store: f.store}
	f.engine = NewEngine(EngineDependencies{
		Provider:      testProvider,
		Interval:      time.Hour,
		Registrations: f.registrations,
		Workflows:     f.store,
		Credentials:   store,
		Authenticator: staticAuthenticator{},
		Dispatcher:    f.dispatcher,
		Checkers:      []Checker{NewChecker[fakeCursor, []fakeItem, fakeItem](f.adapter)},
	})

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	f.adapter.setItems(fakeItem{Seq: 1}, fakeItem{Seq: 2})
	store.pauseNextList()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.ReconcileCredential(ctx, "c1")
	}()

	<-store.loaded

	f.engine.Tick(ctx)
	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 2}}, f.dispatcher.Calls())

	close(store.release)
	<-done

	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 2}}, f.dispatcher.Calls())
}

func TestEngine_SkipsCredentialInvalidatedBeforePass(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	store := &pausingStore{Store: f.store}
	f.engine = NewEngine(EngineDependencies{
		Provider:      testProvider,
		Interval:      time.Hour,
		Registrations: f.registrations,
		Workflows:     f.store,
		Credentials:   store,
		Authenticator: staticAuthenticator{},
		Dispatcher:    f.dispatcher,
		Checkers:      []Checker{NewChecker[fakeCursor, []fakeItem, fakeItem](f.adapter)},
	})

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	store.pauseNextList()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.engine.Tick(ctx)
	}()

	<-store.loaded
	require.NoError(t, f.store.MarkCredentialInvalid(ctx, "c1"))
	close(store.release)
	<-done

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.adapter.fetches))
}

func TestEngine_RedeliversWhenCursorWriteFails(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	f.adapter.setItems(fakeItem{Seq: 1}, fakeItem{Seq: 2})
	f.store.FailPollingStateWrites = true
	f.engine.Tick(ctx)

	f.store.FailPollingStateWrites = false
	f.engine.Tick(ctx)

	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 2}, {WorkflowID: "w1", Seq: 2}}, f.dispatcher.Calls())

	f.engine.Tick(ctx)
	assert.Len(t, f.dispatcher.Calls(), 2)
}

func TestEngine_FailedDispatchHoldsCursor(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	f.adapter.setItems(fakeItem{Seq: 1}, fakeItem{Seq: 2})
	f.dispatcher.err = errors.New("runner unavailable")
	f.engine.Tick(ctx)

	f.dispatcher.err = nil
	f.engine.Tick(ctx)

	assert.Equal(t, []dispatchCall{{WorkflowID: "w1", Seq: 2}}, f.dispatcher.Calls())
}

func TestEngine_NotActiveDoesNotHoldCursor(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.setItems(fakeItem{Seq: 1})
	f.engine.Tick(ctx)

	f.adapter.setItems(fakeItem{Seq: 2})
	f.dispatcher.err = domain.ErrNotActive
	f.engine.Tick(ctx)

	credential, err := f.store.GetCredential(ctx, "c1")
	require.NoError(t, err)

	var cursor fakeCursor
	_, err = credential.PollingState.Decode("fake:new_item", &cursor)
	require.NoError(t, err)
	assert.Equal(t, 2, cursor.LastSeen)
}

func TestEngine_FetchFailureIsIsolatedPerCredential(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)

	f.addWorkflow(t, "w1", "u1")
	f.addCredential(t, "c1", "u1", 100)
	f.register("w1", "")

	f.adapter.fetchErr = errors.New("boom")
	f.engine.Tick(ctx)

	credential, err := f.store.GetCredential(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, credential.PollingState)

	f.adapter.fetchErr = nil
	f.adapter.setItems(fakeItem{Seq: 5})
	f.engine.Tick(ctx)

	credential, err = f.store.GetCredential(ctx, "c1")
	require.NoError(t, err)
	assert.Contains(t, credential.PollingState, "fake:new_item")
}

func TestEngine_DropsRegistrationsOfDeletedWorkflows(t *testing.T) {
	f := newEngineFixture(t)

	f.addCredential(t, "c1", "u1", 100)
	f.register("gone", "")

	f.engine.Tick(context.Background())

	assert.Equal(t, int32(0), atomic.LoadInt32(&f.adapter.fetches))
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	f := newEngineFixture(t)

	<-f.engine.Stop().Done()
	assert.False(t, f.engine.IsRunning())

	f.engine.Start(context.Background())
	f.engine.Start(context.Background())
	assert.True(t, f.engine.IsRunning())

	<-f.engine.Stop().Done()
	<-f.engine.Stop().Done()
	assert.False(t, f.engine.IsRunning())
}

func TestChecksByConfig(t *testing.T) {
	checks := ChecksByConfig("github:new_star", "repository", []Target{
		{WorkflowID: "w1", Config: map[string]any{"repository": "a/b"}},
		{WorkflowID: "w2", Config: map[string]any{"repository": "c/d"}},
		{WorkflowID: "w3", Config: map[string]any{"repository": "a/b"}},
		{WorkflowID: "w4", Config: map[string]any{}},
	})

	require.Len(t, checks, 2)
	assert.Equal(t, "github:new_star:a/b", checks[0].CursorKey)
	assert.Equal(t, "a/b", checks[0].Params["repository"])
	assert.Len(t, checks[0].Targets, 2)
	assert.Equal(t, "github:new_star:c/d", checks[1].CursorKey)
}
