package durable

import (
	"context"
	"testing"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisRunner(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	runner := NewRedisRunner(RedisRunnerDependencies{Client: client, KeyPrefix: "test"})

	t.Run("start is idempotent per run id", func(t *testing.T) {
		first, err := runner.StartRun(ctx, "run-a", domain.RunInput{RunID: "run-a", WorkflowID: "w1"})
		require.NoError(t, err)

		second, err := runner.StartRun(ctx, "run-a", domain.RunInput{RunID: "run-a", WorkflowID: "w1"})
		require.NoError(t, err)
		assert.Equal(t, first.DurableRunID, second.DurableRunID)

		length, err := client.LLen(ctx, "test:queue").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)

		result, err := runner.GetRunResult(ctx, first.DurableRunID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatus_Queued, result.Status)
	})

	t.Run("worker executes queued runs and reports the result", func(t *testing.T) {
		finished := make(chan domain.RunResult, 4)

		worker := NewWorker(WorkerDependencies{
			Client:       client,
			KeyPrefix:    "test",
			Executor:     &flakyExecutor{failures: 1},
			Observer:     observerFunc(func(ctx context.Context, result domain.RunResult) { finished <- result }),
			Policy:       RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond},
			BlockTimeout: 100 * time.Millisecond,
		})

		workerCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			worker.Run(workerCtx)
		}()

		var result domain.RunResult
		select {
		case result = <-finished:
		case <-time.After(10 * time.Second):
			t.Fatal("run did not finish")
		}

		cancel()
		<-done

		assert.Equal(t, domain.RunStatus_Completed, result.Status)
		assert.Equal(t, 2, result.Attempts)

		stored, err := runner.GetRunResult(ctx, result.DurableRunID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatus_Completed, stored.Status)
	})

	t.Run("cancelled queued run reports cancelled", func(t *testing.T) {
		handle, err := runner.StartRun(ctx, "run-b", domain.RunInput{RunID: "run-b"})
		require.NoError(t, err)

		require.NoError(t, runner.CancelRun(ctx, handle.DurableRunID))

		running, err := runner.IsRunning(ctx, handle.DurableRunID)
		require.NoError(t, err)
		assert.False(t, running)

		assert.ErrorIs(t, runner.CancelRun(ctx, "missing"), domain.ErrNotFound)
	})
}
