package durable

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RunExecutor performs the work of one durable run attempt.
type RunExecutor interface {
	Run(ctx context.Context, input domain.RunInput) (map[string]any, error)
}

type WorkerDependencies struct {
	Client       *redis.Client
	KeyPrefix    string
	Retention    time.Duration
	Executor     RunExecutor
	Observer     domain.RunObserver
	Policy       RetryPolicy
	Concurrency  int
	BlockTimeout time.Duration
}

type Worker struct {
	client       *redis.Client
	keys         keys
	retention    time.Duration
	executor     RunExecutor
	observer     domain.RunObserver
	policy       RetryPolicy
	concurrency  int
	blockTimeout time.Duration
}

func NewWorker(deps WorkerDependencies) *Worker {
	prefix := deps.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	retention := deps.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	blockTimeout := deps.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}

	return &Worker{
		client:       deps.Client,
		keys:         keys{prefix: prefix},
		retention:    retention,
		executor:     deps.Executor,
		observer:     deps.Observer,
		policy:       deps.Policy.withDefaults(),
		concurrency:  concurrency,
		blockTimeout: blockTimeout,
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}

	wg.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := w.client.BLPop(ctx, w.blockTimeout, w.keys.queue()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Error().Err(err).Msg("Failed to pop durable run")

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		w.process(ctx, res[1])
	}
}

func (w *Worker) process(ctx context.Context, durableRunID string) {
	logger := log.With().Str("durable_run_id", durableRunID).Logger()

	state, err := loadState(ctx, w.client, w.keys, durableRunID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load durable run")
		return
	}

	if state.Status.IsTerminal() {
		return
	}

	logger = logger.With().Str("workflow_id", state.Input.WorkflowID).Str("action", string(state.Input.Action.Kind)).Logger()

	state.Status = domain.RunStatus_Running
	if err := saveState(ctx, w.client, w.keys, state, w.retention); err != nil {
		logger.Error().Err(err).Msg("Failed to mark durable run running")
		return
	}

	isCancelled := func() bool {
		cancelled, err := cancelRequested(ctx, w.client, w.keys, durableRunID)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to check durable run cancellation")
			return false
		}

		return cancelled
	}

	result := w.policy.run(ctx, func(attemptCtx context.Context, attempt int) (map[string]any, error) {
		state.Attempts = attempt
		if err := saveState(ctx, w.client, w.keys, state, w.retention); err != nil {
			logger.Warn().Err(err).Msg("Failed to record durable run attempt")
		}

		output, err := w.executor.Run(attemptCtx, state.Input)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Durable run attempt failed")
		}

		return output, err
	}, isCancelled)

	finishedAt := time.Now().UTC()

	state.Status = result.status
	state.Attempts = result.attempts
	state.Output = result.output
	state.FinishedAt = &finishedAt
	if result.err != nil {
		state.Error = result.err.Error()
	}

	if err := saveState(context.WithoutCancel(ctx), w.client, w.keys, state, w.retention); err != nil {
		logger.Error().Err(err).Msg("Failed to save durable run result")
	}

	logger.Info().Str("status", string(state.Status)).Int("attempts", state.Attempts).Msg("Durable run finished")

	if w.observer != nil {
		w.observer.OnRunFinished(context.WithoutCancel(ctx), state.result())
	}
}
