package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/dbscheduler/internal/store"
)

func TestOneShotComplete_RemovesExecution(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: time.Now()}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	ops := NewExecutionOps(s, row)
	require.NoError(t, OneShotComplete(ctx, row, ops))
	assert.Equal(t, 0, s.Len())
}

func TestRescheduleEvery_AdvancesFromExecutionTime(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: base}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	handler := RescheduleEvery(time.Hour, func() time.Time { return base.Add(time.Minute) })
	ops := NewExecutionOps(s, row)
	require.NoError(t, handler(ctx, row, ops))

	due, err := s.GetDue(ctx, base.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, base.Add(time.Hour), due[0].ExecutionTime)
	assert.Equal(t, 0, due[0].ConsecutiveFailures)
}

func TestRescheduleEvery_CatchesUpWhenOverdue(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: base}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	// now is far past the naive next interval, so the handler must roll
	// forward from now instead of scheduling something already overdue.
	now := base.Add(5 * time.Hour)
	handler := RescheduleEvery(time.Hour, func() time.Time { return now })
	ops := NewExecutionOps(s, row)
	require.NoError(t, handler(ctx, row, ops))

	due, err := s.GetDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, now.Add(time.Hour), due[0].ExecutionTime)
}

func TestRetryWithBackoff_RemovesAfterMaxAttempts(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: time.Now(), ConsecutiveFailures: 2}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	handler := RetryWithBackoff(3, func(attempt int) time.Duration { return time.Duration(attempt) * time.Second }, time.Now)
	ops := NewExecutionOps(s, row)
	require.NoError(t, handler(ctx, row, assert.AnError, ops))
	assert.Equal(t, 0, s.Len(), "the third failed attempt must remove the execution")
}

func TestRetryWithBackoff_ReschedulesBeforeMaxAttempts(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: now, ConsecutiveFailures: 0}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	handler := RetryWithBackoff(3, func(attempt int) time.Duration { return time.Duration(attempt) * time.Minute }, func() time.Time { return now })
	ops := NewExecutionOps(s, row)
	require.NoError(t, handler(ctx, row, assert.AnError, ops))

	due, err := s.GetDue(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].ConsecutiveFailures)
	assert.Equal(t, now.Add(time.Minute), due[0].ExecutionTime)
}

func TestDeadRescheduleNow_MakesExecutionImmediatelyDue(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	exec := store.Execution{TaskName: "t", InstanceID: "1", ExecutionTime: now.Add(-time.Hour), Picked: true, ConsecutiveFailures: 1}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	// GetByIdentity, not GetDue: the row is still Picked, so GetDue would
	// filter it out even though it is exactly the row the dead-detector
	// would be handing to this handler.
	row, ok, err := s.GetByIdentity(ctx, "t", "1")
	require.NoError(t, err)
	require.True(t, ok)

	handler := DeadRescheduleNow(func() time.Time { return now })
	ops := NewExecutionOps(s, row)
	require.NoError(t, handler(ctx, row, ops))

	due, err := s.GetDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.False(t, due[0].Picked)
	assert.Equal(t, 2, due[0].ConsecutiveFailures)
}
