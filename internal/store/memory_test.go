package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIfNotExists_RejectsDuplicateIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exec := Execution{TaskName: "t", InstanceID: "i", ExecutionTime: time.Now()}

	created, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, s.Len())
}

func TestGetByIdentity_ReturnsCurrentVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exec := Execution{TaskName: "t", InstanceID: "i", ExecutionTime: time.Now()}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	row, ok, err := s.GetByIdentity(ctx, "t", "i")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, row.Version)

	due, _ := s.GetDue(ctx, time.Now(), 10)
	_, _, err = s.Pick(ctx, due[0], "node-a", time.Now())
	require.NoError(t, err)

	row, ok, err = s.GetByIdentity(ctx, "t", "i")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, row.Version)

	_, ok, err = s.GetByIdentity(ctx, "t", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPick_SucceedsOnceForMatchingVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	exec := Execution{TaskName: "t", InstanceID: "i", ExecutionTime: now}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	due, err := s.GetDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	candidate := due[0]

	picked, ok, err := s.Pick(ctx, candidate, "node-a", now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, picked.Picked)
	assert.Equal(t, "node-a", picked.PickedBy)
	assert.Equal(t, candidate.Version+1, picked.Version)

	// A second pick against the stale candidate must lose the race.
	_, ok, err = s.Pick(ctx, candidate, "node-b", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPick_TwoNodesRaceExactlyOneWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	exec := Execution{TaskName: "t", InstanceID: "i", ExecutionTime: now}
	_, err := s.CreateIfNotExists(ctx, exec)
	require.NoError(t, err)

	due, _ := s.GetDue(ctx, now, 10)
	candidate := due[0]

	type result struct {
		ok bool
	}
	results := make(chan result, 2)
	for _, node := range []string{"node-a", "node-b"} {
		node := node
		go func() {
			_, ok, _ := s.Pick(ctx, candidate, node, now)
			results <- result{ok: ok}
		}()
	}

	wins := 0
	for i := 0; i < 2; i++ {
		r := <-results
		if r.ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestGetDue_ExcludesPickedAndFutureExecutions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.CreateIfNotExists(ctx, Execution{TaskName: "due", InstanceID: "1", ExecutionTime: now.Add(-time.Minute)})
	_, _ = s.CreateIfNotExists(ctx, Execution{TaskName: "future", InstanceID: "1", ExecutionTime: now.Add(time.Hour)})

	due, err := s.GetDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].TaskName)
}

func TestGetOldExecutions_OnlyReturnsStalePicked(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.CreateIfNotExists(ctx, Execution{TaskName: "t", InstanceID: "1", ExecutionTime: now})
	due, _ := s.GetDue(ctx, now, 10)
	picked, ok, err := s.Pick(ctx, due[0], "node-a", now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	old, err := s.GetOldExecutions(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, picked.InstanceID, old[0].InstanceID)

	old, err = s.GetOldExecutions(ctx, now.Add(-20*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestRemove_IsVersionChecked(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	exec := Execution{TaskName: "t", InstanceID: "i", ExecutionTime: time.Now()}
	_, _ = s.CreateIfNotExists(ctx, exec)

	stale := exec
	stale.Version = 999
	err := s.Remove(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len(), "remove with wrong version must be a no-op")

	due, _ := s.GetDue(ctx, time.Now(), 10)
	err = s.Remove(ctx, due[0])
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestReschedule_ClearsPickedState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	_, _ = s.CreateIfNotExists(ctx, Execution{TaskName: "t", InstanceID: "i", ExecutionTime: now})
	due, _ := s.GetDue(ctx, now, 10)
	picked, _, _ := s.Pick(ctx, due[0], "node-a", now)

	next := now.Add(time.Hour)
	err := s.Reschedule(ctx, picked, next, &now, nil, 0)
	require.NoError(t, err)

	futureDue, err := s.GetDue(ctx, next, 10)
	require.NoError(t, err)
	require.Len(t, futureDue, 1)
	assert.False(t, futureDue[0].Picked)
	assert.Equal(t, next, futureDue[0].ExecutionTime)
}

func TestGetExecutionsFailingLongerThan(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	failedAt := now.Add(-time.Hour)

	_, _ = s.CreateIfNotExists(ctx, Execution{
		TaskName: "t", InstanceID: "i", ExecutionTime: now,
		LastFailure: &failedAt,
	})

	failing, err := s.GetExecutionsFailingLongerThan(ctx, 30*time.Minute, now)
	require.NoError(t, err)
	assert.Len(t, failing, 1)

	failing, err = s.GetExecutionsFailingLongerThan(ctx, 2*time.Hour, now)
	require.NoError(t, err)
	assert.Empty(t, failing)
}
