// Package client is the persistence-contract-only API described in
// spec.md §6: callers schedule, reschedule, and cancel executions without
// ever touching the scheduler's loops directly. It is the only supported
// way for application code outside the scheduler package to create work.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minisource/dbscheduler/internal/store"
)

// Waker is the one-way capability the scheduler exposes back to the client
// layer (spec.md §9, "Cyclic reference" design note): it lets Schedule wake
// the due-poller immediately for already-due work, without the client
// holding a reference to the scheduler itself.
type Waker interface {
	WakeDue()
}

// Client schedules, reschedules, and cancels executions against a Store.
type Client struct {
	store  store.Store
	waker  Waker
	wakeOn bool
}

// New builds a Client bound to s. If wakeImmediate is true and waker is
// non-nil, Schedule calls for already-due executions wake the scheduler's
// due-poller instead of waiting for the next periodic tick.
func New(s store.Store, waker Waker, wakeImmediate bool) *Client {
	return &Client{store: s, waker: waker, wakeOn: wakeImmediate}
}

// Schedule creates a new execution for (taskName, instanceID) at
// executionTime carrying data. It returns false, with no error, if an
// execution with that identity already exists (spec.md §4.1 I1).
func (c *Client) Schedule(ctx context.Context, taskName, instanceID string, executionTime time.Time, data []byte) (bool, error) {
	created, err := c.store.CreateIfNotExists(ctx, store.Execution{
		TaskName:      taskName,
		InstanceID:    instanceID,
		Data:          data,
		ExecutionTime: executionTime,
	})
	if err != nil {
		return false, err
	}
	if created && c.wakeOn && c.waker != nil && !executionTime.After(time.Now()) {
		c.waker.WakeDue()
	}
	return created, nil
}

// ScheduleNew is Schedule for callers that don't have a natural instance
// identity of their own (one-off, fire-and-forget work). It mints a random
// instanceID so the caller never has to worry about colliding with an
// existing execution for taskName.
func (c *Client) ScheduleNew(ctx context.Context, taskName string, executionTime time.Time, data []byte) (instanceID string, err error) {
	instanceID = uuid.NewString()
	if _, err := c.Schedule(ctx, taskName, instanceID, executionTime, data); err != nil {
		return "", err
	}
	return instanceID, nil
}

// Reschedule moves an existing, not-currently-picked execution to newTime.
// It is a thin wrapper for client code that wants to change timing without
// going through a completion/failure handler; it does not touch Picked.
// It looks the row up first to learn its current Version, since
// Store.Reschedule is version-checked and silently no-ops on a stale
// version; it is itself a no-op, not an error, if the execution is
// already gone or is currently picked.
func (c *Client) Reschedule(ctx context.Context, taskName, instanceID string, newTime time.Time) error {
	exec, ok, err := c.store.GetByIdentity(ctx, taskName, instanceID)
	if err != nil || !ok || exec.Picked {
		return err
	}
	return c.store.Reschedule(ctx, exec, newTime, nil, nil, exec.ConsecutiveFailures)
}

// Cancel deletes a scheduled execution. It looks the row up first to learn
// its current Version, for the same reason as Reschedule. It is a no-op,
// not an error, if the execution is already gone, is currently picked, or
// has moved to a different version by the time Remove runs (e.g. it was
// picked for execution concurrently).
func (c *Client) Cancel(ctx context.Context, taskName, instanceID string) error {
	exec, ok, err := c.store.GetByIdentity(ctx, taskName, instanceID)
	if err != nil || !ok || exec.Picked {
		return err
	}
	return c.store.Remove(ctx, exec)
}

// GetScheduledExecutions returns up to limit executions due at or before
// now, for inspection by callers (admin tooling, tests). It does not pick
// anything.
func (c *Client) GetScheduledExecutions(ctx context.Context, now time.Time, limit int) ([]store.Execution, error) {
	return c.store.GetDue(ctx, now, limit)
}
