package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

const (
	DefaultKeyPrefix = "automations:durable"
	DefaultRetention = 7 * 24 * time.Hour
)

type runState struct {
	DurableRunID string           `json:"durable_run_id"`
	Input        domain.RunInput  `json:"input"`
	Status       domain.RunStatus `json:"status"`
	Attempts     int              `json:"attempts"`
	Output       map[string]any   `json:"output,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

func (s runState) result() domain.RunResult {
	return domain.RunResult{
		DurableRunID: s.DurableRunID,
		RunID:        s.Input.RunID,
		Status:       s.Status,
		Attempts:     s.Attempts,
		Output:       s.Output,
		Error:        s.Error,
		FinishedAt:   s.FinishedAt,
	}
}

type keys struct {
	prefix string
}

func (k keys) run(durableRunID string) string {
	return fmt.Sprintf("%s:run:%s", k.prefix, durableRunID)
}

func (k keys) correlation(runID string) string {
	return fmt.Sprintf("%s:correlation:%s", k.prefix, runID)
}

func (k keys) cancel(durableRunID string) string {
	return fmt.Sprintf("%s:cancel:%s", k.prefix, durableRunID)
}

func (k keys) queue() string {
	return fmt.Sprintf("%s:queue", k.prefix)
}

type RedisRunnerDependencies struct {
	Client    *redis.Client
	KeyPrefix string
	Retention time.Duration
}

// RedisRunner queues runs on a Redis list and keeps their state as JSON
// values. Runs are executed by Worker.
type RedisRunner struct {
	client    *redis.Client
	keys      keys
	retention time.Duration
}

func NewRedisRunner(deps RedisRunnerDependencies) *RedisRunner {
	prefix := deps.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	retention := deps.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &RedisRunner{
		client:    deps.Client,
		keys:      keys{prefix: prefix},
		retention: retention,
	}
}

// StartRun is idempotent per runID: a repeated call returns the existing run.
func (r *RedisRunner) StartRun(ctx context.Context, runID string, input domain.RunInput) (domain.RunHandle, error) {
	durableRunID := xid.New().String()

	claimed, err := r.client.SetNX(ctx, r.keys.correlation(runID), durableRunID, r.retention).Result()
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("failed to claim run %s: %w", runID, err)
	}

	if !claimed {
		existing, err := r.client.Get(ctx, r.keys.correlation(runID)).Result()
		if err != nil {
			return domain.RunHandle{}, fmt.Errorf("failed to read run %s: %w", runID, err)
		}

		return domain.RunHandle{DurableRunID: existing}, nil
	}

	now := time.Now().UTC()

	state := runState{
		DurableRunID: durableRunID,
		Input:        input,
		Status:       domain.RunStatus_Queued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("failed to marshal run state: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.run(durableRunID), raw, r.retention)
		pipe.RPush(ctx, r.keys.queue(), durableRunID)
		return nil
	})
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("failed to enqueue run %s: %w", runID, err)
	}

	return domain.RunHandle{DurableRunID: durableRunID}, nil
}

func (r *RedisRunner) GetRunResult(ctx context.Context, durableRunID string) (domain.RunResult, error) {
	state, err := loadState(ctx, r.client, r.keys, durableRunID)
	if err != nil {
		return domain.RunResult{}, err
	}

	result := state.result()

	if !result.Status.IsTerminal() {
		cancelled, err := cancelRequested(ctx, r.client, r.keys, durableRunID)
		if err != nil {
			return domain.RunResult{}, err
		}

		if cancelled && result.Status == domain.RunStatus_Queued {
			result.Status = domain.RunStatus_Cancelled
		}
	}

	return result, nil
}

// CancelRun flags the run. The worker observes the flag before each attempt.
func (r *RedisRunner) CancelRun(ctx context.Context, durableRunID string) error {
	if _, err := loadState(ctx, r.client, r.keys, durableRunID); err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.keys.cancel(durableRunID), "1", r.retention).Err(); err != nil {
		return fmt.Errorf("failed to cancel run %s: %w", durableRunID, err)
	}

	return nil
}

func (r *RedisRunner) IsRunning(ctx context.Context, durableRunID string) (bool, error) {
	result, err := r.GetRunResult(ctx, durableRunID)
	if err != nil {
		return false, err
	}

	return !result.Status.IsTerminal(), nil
}

func loadState(ctx context.Context, client *redis.Client, k keys, durableRunID string) (runState, error) {
	raw, err := client.Get(ctx, k.run(durableRunID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return runState{}, domain.NewNotFoundError("durable run", durableRunID)
	}

	if err != nil {
		return runState{}, fmt.Errorf("failed to load run %s: %w", durableRunID, err)
	}

	var state runState
	if err := json.Unmarshal(raw, &state); err != nil {
		return runState{}, fmt.Errorf("failed to unmarshal run %s: %w", durableRunID, err)
	}

	return state, nil
}

func saveState(ctx context.Context, client *redis.Client, k keys, state runState, retention time.Duration) error {
	state.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := client.Set(ctx, k.run(state.DurableRunID), raw, retention).Err(); err != nil {
		return fmt.Errorf("failed to save run %s: %w", state.DurableRunID, err)
	}

	return nil
}

func cancelRequested(ctx context.Context, client *redis.Client, k keys, durableRunID string) (bool, error) {
	n, err := client.Exists(ctx, k.cancel(durableRunID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cancellation of run %s: %w", durableRunID, err)
	}

	return n > 0, nil
}
