package registry

import (
	"context"
	"time"

	"github.com/minisource/dbscheduler/internal/store"
)

// OneShotComplete removes the execution on success — the policy for tasks
// that run exactly once.
func OneShotComplete(ctx context.Context, exec store.Execution, ops *ExecutionOps) error {
	return ops.Remove(ctx)
}

// RescheduleEvery returns a CompletionHandler that reschedules the
// execution interval after the current ExecutionTime, resetting
// ConsecutiveFailures to zero (I5) and stamping LastSuccess.
func RescheduleEvery(interval time.Duration, nowFn func() time.Time) CompletionHandler {
	return func(ctx context.Context, exec store.Execution, ops *ExecutionOps) error {
		now := nowFn()
		next := exec.ExecutionTime.Add(interval)
		if next.Before(now) {
			next = now.Add(interval)
		}
		return ops.Reschedule(ctx, next, &now, exec.LastFailure, 0)
	}
}

// RetryWithBackoff returns a FailureHandler that bumps the failure counter
// to ConsecutiveFailures+1 and reschedules after backoff(that count),
// stamping LastFailure. Once that count reaches maxAttempts (when
// maxAttempts > 0), the execution is removed instead.
func RetryWithBackoff(maxAttempts int, backoff func(attempt int) time.Duration, nowFn func() time.Time) FailureHandler {
	return func(ctx context.Context, exec store.Execution, cause error, ops *ExecutionOps) error {
		attempts := exec.ConsecutiveFailures + 1
		now := nowFn()
		if maxAttempts > 0 && attempts >= maxAttempts {
			return ops.Remove(ctx)
		}
		next := now.Add(backoff(attempts))
		return ops.Reschedule(ctx, next, exec.LastSuccess, &now, attempts)
	}
}

// DeadRescheduleNow is a DeadExecutionHandler that makes a dead execution
// immediately due again, bumping ConsecutiveFailures, so a live node can
// pick it up on its next due-poll.
func DeadRescheduleNow(nowFn func() time.Time) DeadExecutionHandler {
	return func(ctx context.Context, exec store.Execution, ops *ExecutionOps) error {
		now := nowFn()
		return ops.Reschedule(ctx, now, exec.LastSuccess, &now, exec.ConsecutiveFailures+1)
	}
}
