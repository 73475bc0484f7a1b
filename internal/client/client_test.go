package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minisource/dbscheduler/internal/store"
)

type fakeWaker struct {
	woken int
}

func (f *fakeWaker) WakeDue() { f.woken++ }

func TestSchedule_RejectsDuplicateIdentity(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	created, err := c.Schedule(ctx, "t", "1", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Schedule(ctx, "t", "1", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSchedule_WakesImmediatelyWhenDue(t *testing.T) {
	s := store.NewMemoryStore()
	w := &fakeWaker{}
	c := New(s, w, true)
	ctx := context.Background()

	_, err := c.Schedule(ctx, "t", "1", time.Now().Add(-time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.woken)
}

func TestSchedule_DoesNotWakeForFutureExecutions(t *testing.T) {
	s := store.NewMemoryStore()
	w := &fakeWaker{}
	c := New(s, w, true)
	ctx := context.Background()

	_, err := c.Schedule(ctx, "t", "1", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.woken)
}

func TestSchedule_DoesNotWakeWhenDisabled(t *testing.T) {
	s := store.NewMemoryStore()
	w := &fakeWaker{}
	c := New(s, w, false)
	ctx := context.Background()

	_, err := c.Schedule(ctx, "t", "1", time.Now().Add(-time.Minute), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.woken)
}

func TestScheduleNew_GeneratesDistinctInstanceIDs(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	id1, err := c.ScheduleNew(ctx, "t", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	id2, err := c.ScheduleNew(ctx, "t", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, s.Len())
}

func TestCancel_IsNoopForMissingExecution(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	err := c.Cancel(context.Background(), "ghost", "1")
	assert.NoError(t, err)
}

func TestCancel_RemovesAPersistedExecution(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	_, err := c.Schedule(ctx, "t", "1", time.Now().Add(time.Hour), nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	require.NoError(t, c.Cancel(ctx, "t", "1"))
	assert.Equal(t, 0, s.Len())
}

func TestCancel_IsNoopForAlreadyPickedExecution(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	_, err := c.Schedule(ctx, "t", "1", time.Now().Add(-time.Minute), nil)
	require.NoError(t, err)
	due, _ := s.GetDue(ctx, time.Now(), 10)
	_, ok, err := s.Pick(ctx, due[0], "node-a", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Cancel(ctx, "t", "1"))
	assert.Equal(t, 1, s.Len(), "a picked row must survive a racing Cancel")
}

func TestReschedule_MovesAPersistedExecution(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	now := time.Now()
	_, err := c.Schedule(ctx, "t", "1", now, nil)
	require.NoError(t, err)

	next := now.Add(time.Hour)
	require.NoError(t, c.Reschedule(ctx, "t", "1", next))

	due, err := c.GetScheduledExecutions(ctx, next, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, next, due[0].ExecutionTime)
}

func TestReschedule_IsNoopForMissingExecution(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	err := c.Reschedule(context.Background(), "ghost", "1", time.Now())
	assert.NoError(t, err)
}

func TestGetScheduledExecutions_ReturnsOnlyDueRows(t *testing.T) {
	s := store.NewMemoryStore()
	c := New(s, nil, false)
	ctx := context.Background()

	_, _ = c.Schedule(ctx, "t", "past", time.Now().Add(-time.Minute), nil)
	_, _ = c.Schedule(ctx, "t", "future", time.Now().Add(time.Hour), nil)

	due, err := c.GetScheduledExecutions(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].InstanceID)
}
