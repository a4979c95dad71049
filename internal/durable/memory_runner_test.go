package durable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyExecutor struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (e *flakyExecutor) Run(ctx context.Context, input domain.RunInput) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("provider unavailable")
	}

	return map[string]any{"workflow_id": input.WorkflowID}, nil
}

type observerFunc func(ctx context.Context, result domain.RunResult)

func (f observerFunc) OnRunFinished(ctx context.Context, result domain.RunResult) { f(ctx, result) }

func TestMemoryRunner_ExecutesWithRetries(t *testing.T) {
	ctx := context.Background()

	var finished []domain.RunResult
	var mu sync.Mutex

	runner := NewMemoryRunner(MemoryRunnerDependencies{
		Executor: &flakyExecutor{failures: 1},
		Observer: observerFunc(func(ctx context.Context, result domain.RunResult) {
			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, result)
		}),
		Policy: RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})

	handle, err := runner.StartRun(ctx, "run-1", domain.RunInput{RunID: "run-1", WorkflowID: "w1"})
	require.NoError(t, err)

	again, err := runner.StartRun(ctx, "run-1", domain.RunInput{RunID: "run-1", WorkflowID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, handle.DurableRunID, again.DurableRunID)

	runner.Wait()

	result, err := runner.GetRunResult(ctx, handle.DurableRunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatus_Completed, result.Status)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, "w1", result.Output["workflow_id"])

	running, err := runner.IsRunning(ctx, handle.DurableRunID)
	require.NoError(t, err)
	assert.False(t, running)

	require.Len(t, finished, 1)
	assert.Equal(t, handle.DurableRunID, finished[0].DurableRunID)
}

func TestMemoryRunner_RecordOnlyCancel(t *testing.T) {
	ctx := context.Background()
	runner := NewMemoryRunner(MemoryRunnerDependencies{})

	handle, err := runner.StartRun(ctx, "run-1", domain.RunInput{WorkflowID: "w1"})
	require.NoError(t, err)

	running, err := runner.IsRunning(ctx, handle.DurableRunID)
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, runner.CancelRun(ctx, handle.DurableRunID))

	result, err := runner.GetRunResult(ctx, handle.DurableRunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatus_Cancelled, result.Status)

	assert.ErrorIs(t, runner.CancelRun(ctx, "missing"), domain.ErrNotFound)
	assert.Len(t, runner.Inputs(), 1)
}
