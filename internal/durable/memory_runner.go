package durable

import (
	"context"
	"sync"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

type MemoryRunnerDependencies struct {
	Executor RunExecutor
	Observer domain.RunObserver
	Policy   RetryPolicy
}

// MemoryRunner runs actions in-process. Without an executor it only records
// started runs, which tests use to inspect dispatches.
type MemoryRunner struct {
	executor RunExecutor
	observer domain.RunObserver
	policy   RetryPolicy

	mu            sync.Mutex
	runs          map[string]*runState
	byCorrelation map[string]string
	cancelled     map[string]bool
	order         []string
	wg            sync.WaitGroup
}

func NewMemoryRunner(deps MemoryRunnerDependencies) *MemoryRunner {
	return &MemoryRunner{
		executor:      deps.Executor,
		observer:      deps.Observer,
		policy:        deps.Policy.withDefaults(),
		runs:          make(map[string]*runState),
		byCorrelation: make(map[string]string),
		cancelled:     make(map[string]bool),
	}
}

func (r *MemoryRunner) StartRun(ctx context.Context, runID string, input domain.RunInput) (domain.RunHandle, error) {
	r.mu.Lock()

	if existing, ok := r.byCorrelation[runID]; ok {
		r.mu.Unlock()
		return domain.RunHandle{DurableRunID: existing}, nil
	}

	now := time.Now().UTC()
	state := &runState{
		DurableRunID: xid.New().String(),
		Input:        input,
		Status:       domain.RunStatus_Running,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.runs[state.DurableRunID] = state
	r.byCorrelation[runID] = state.DurableRunID
	r.order = append(r.order, state.DurableRunID)

	r.mu.Unlock()

	if r.executor != nil {
		r.wg.Add(1)
		go r.execute(context.WithoutCancel(ctx), state.DurableRunID, input)
	}

	return domain.RunHandle{DurableRunID: state.DurableRunID}, nil
}

func (r *MemoryRunner) execute(ctx context.Context, durableRunID string, input domain.RunInput) {
	defer r.wg.Done()

	result := r.policy.run(ctx, func(attemptCtx context.Context, attempt int) (map[string]any, error) {
		return r.executor.Run(attemptCtx, input)
	}, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.cancelled[durableRunID]
	})

	finishedAt := time.Now().UTC()

	r.mu.Lock()
	state := r.runs[durableRunID]
	state.Status = result.status
	state.Attempts = result.attempts
	state.Output = result.output
	state.FinishedAt = &finishedAt
	if result.err != nil {
		state.Error = result.err.Error()
	}
	final := state.result()
	r.mu.Unlock()

	log.Debug().Str("durable_run_id", durableRunID).Str("status", string(final.Status)).Msg("In-memory run finished")

	if r.observer != nil {
		r.observer.OnRunFinished(ctx, final)
	}
}

func (r *MemoryRunner) GetRunResult(ctx context.Context, durableRunID string) (domain.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.runs[durableRunID]
	if !ok {
		return domain.RunResult{}, domain.NewNotFoundError("durable run", durableRunID)
	}

	return state.result(), nil
}

func (r *MemoryRunner) CancelRun(ctx context.Context, durableRunID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.runs[durableRunID]
	if !ok {
		return domain.NewNotFoundError("durable run", durableRunID)
	}

	r.cancelled[durableRunID] = true

	if r.executor == nil && !state.Status.IsTerminal() {
		now := time.Now().UTC()
		state.Status = domain.RunStatus_Cancelled
		state.FinishedAt = &now
	}

	return nil
}

func (r *MemoryRunner) IsRunning(ctx context.Context, durableRunID string) (bool, error) {
	result, err := r.GetRunResult(ctx, durableRunID)
	if err != nil {
		return false, err
	}

	return !result.Status.IsTerminal(), nil
}

// Inputs returns the inputs of every started run in start order.
func (r *MemoryRunner) Inputs() []domain.RunInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	inputs := make([]domain.RunInput, 0, len(r.order))
	for _, id := range r.order {
		inputs = append(inputs, r.runs[id].Input)
	}

	return inputs
}

// Wait blocks until every started run has finished executing.
func (r *MemoryRunner) Wait() {
	r.wg.Wait()
}
