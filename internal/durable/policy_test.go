package durable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flowbaker/automations/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, policy.Backoff(1))
	assert.Equal(t, 2*time.Second, policy.Backoff(2))
	assert.Equal(t, 4*time.Second, policy.Backoff(3))
	assert.Equal(t, 5*time.Second, policy.Backoff(4))
}

func TestRetryPolicy_Run(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, RunTimeout: time.Second}
	notCancelled := func() bool { return false }

	tests := []struct {
		name             string
		errs             []error
		cancelled        func() bool
		expectedStatus   domain.RunStatus
		expectedAttempts int
	}{
		{
			name:             "succeeds first time",
			errs:             []error{nil},
			cancelled:        notCancelled,
			expectedStatus:   domain.RunStatus_Completed,
			expectedAttempts: 1,
		},
		{
			name:             "retries transient failures",
			errs:             []error{errors.New("timeout"), errors.New("timeout"), nil},
			cancelled:        notCancelled,
			expectedStatus:   domain.RunStatus_Completed,
			expectedAttempts: 3,
		},
		{
			name:             "gives up after max attempts",
			errs:             []error{errors.New("a"), errors.New("b"), errors.New("c")},
			cancelled:        notCancelled,
			expectedStatus:   domain.RunStatus_Failed,
			expectedAttempts: 3,
		},
		{
			name:             "permanent error is not retried",
			errs:             []error{domain.NewValidationError("action config")},
			cancelled:        notCancelled,
			expectedStatus:   domain.RunStatus_Failed,
			expectedAttempts: 1,
		},
		{
			name:             "cancelled before first attempt",
			errs:             []error{nil},
			cancelled:        func() bool { return true },
			expectedStatus:   domain.RunStatus_Cancelled,
			expectedAttempts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0

			result := policy.withDefaults().run(context.Background(), func(ctx context.Context, attempt int) (map[string]any, error) {
				err := tt.errs[calls]
				calls++
				return map[string]any{"attempt": attempt}, err
			}, tt.cancelled)

			assert.Equal(t, tt.expectedStatus, result.status)
			assert.Equal(t, tt.expectedAttempts, result.attempts)
			assert.Equal(t, tt.expectedAttempts, calls)
		})
	}
}
