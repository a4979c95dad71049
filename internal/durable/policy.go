package durable

import (
	"context"
	"errors"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 10 * time.Second
	DefaultMaxBackoff     = 5 * time.Minute
	DefaultRunTimeout     = 5 * time.Minute
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RunTimeout     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}

	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}

	if p.RunTimeout <= 0 {
		p.RunTimeout = DefaultRunTimeout
	}

	return p
}

// Backoff returns the wait after the given failed attempt, doubling from
// InitialBackoff and capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff

	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}

	return backoff
}

type AttemptFunc func(ctx context.Context, attempt int) (map[string]any, error)

type outcome struct {
	status   domain.RunStatus
	output   map[string]any
	err      error
	attempts int
}

func (p RetryPolicy) run(ctx context.Context, attempt AttemptFunc, cancelled func() bool) outcome {
	var lastErr error

	for n := 1; n <= p.MaxAttempts; n++ {
		if cancelled() {
			return outcome{status: domain.RunStatus_Cancelled, attempts: n - 1}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.RunTimeout)
		output, err := attempt(attemptCtx, n)
		cancel()

		if err == nil {
			return outcome{status: domain.RunStatus_Completed, output: output, attempts: n}
		}

		lastErr = err

		if isPermanent(err) || n == p.MaxAttempts {
			return outcome{status: domain.RunStatus_Failed, err: lastErr, attempts: n}
		}

		timer := time.NewTimer(p.Backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome{status: domain.RunStatus_Failed, err: ctx.Err(), attempts: n}
		case <-timer.C:
		}
	}

	return outcome{status: domain.RunStatus_Failed, err: lastErr, attempts: p.MaxAttempts}
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrUnsupportedAction) ||
		errors.Is(err, domain.ErrCredential) ||
		errors.Is(err, domain.ErrNotFound)
}
