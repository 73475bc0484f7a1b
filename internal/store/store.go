package store

import (
	"context"
	"time"
)

// Store is the ExecutionStore contract from spec.md §4.1. Implementations
// must make Pick a single atomic conditional update — never a
// read-then-write pair — since it is the only correctness-critical
// synchronization point between scheduler nodes (spec.md §9).
type Store interface {
	// CreateIfNotExists inserts exec. It returns false, with no error, if
	// (TaskName, InstanceID) already exists; other failures are returned
	// as an error, never swallowed.
	CreateIfNotExists(ctx context.Context, exec Execution) (bool, error)

	// GetDue returns up to limit unpicked executions with ExecutionTime <=
	// now, ordered by ExecutionTime ascending. It does not lock anything.
	GetDue(ctx context.Context, now time.Time, limit int) ([]Execution, error)

	// GetByIdentity returns the current persisted row for (taskName,
	// instanceID), including its current Version. ok is false if no such
	// execution exists. Callers that want to mutate a row they didn't
	// just read from GetDue/Pick (e.g. client-facing Reschedule/Cancel)
	// must look it up this way first, since Reschedule and Remove are
	// version-checked against whatever Version the caller supplies.
	GetByIdentity(ctx context.Context, taskName, instanceID string) (exec Execution, ok bool, err error)

	// Pick attempts to claim candidate for schedulerName. It succeeds only
	// if the persisted row still matches candidate's identity, Version,
	// and Picked == false; on success it sets Picked, PickedBy,
	// LastHeartbeat = now, increments Version, and returns the updated
	// row. On a lost race (already picked, rescheduled, or removed) it
	// returns ok == false with no error.
	Pick(ctx context.Context, candidate Execution, schedulerName string, now time.Time) (picked Execution, ok bool, err error)

	// UpdateHeartbeat unconditionally stamps LastHeartbeat for the
	// identified execution. Heartbeats are advisory: a version conflict
	// or missing row is not reported as an error to the caller beyond
	// logging, since the dead-detector is the real recovery path.
	UpdateHeartbeat(ctx context.Context, exec Execution, now time.Time) error

	// GetOldExecutions returns picked executions whose LastHeartbeat
	// predates olderThan, from any scheduler node.
	GetOldExecutions(ctx context.Context, olderThan time.Time) ([]Execution, error)

	// Remove deletes the identified execution. Version-checked: it is a
	// no-op (not an error) if the row's Version no longer matches exec's.
	Remove(ctx context.Context, exec Execution) error

	// Reschedule releases the pick lock and persists a new ExecutionTime
	// plus completion bookkeeping. Version-checked like Remove.
	Reschedule(ctx context.Context, exec Execution, newTime time.Time, lastSuccess, lastFailure *time.Time, consecutiveFailures int) error

	// GetExecutionsFailingLongerThan is a read-only diagnostic: it returns
	// executions whose LastFailure is older than now-duration and whose
	// LastSuccess is not more recent than LastFailure.
	GetExecutionsFailingLongerThan(ctx context.Context, duration time.Duration, now time.Time) ([]Execution, error)
}

// ErrVersionConflict is returned by implementations that choose to surface
// a lost optimistic-concurrency race as an error rather than a boolean,
// e.g. from client-facing Reschedule/Cancel calls outside of Pick.
type ErrVersionConflict struct {
	TaskName   string
	InstanceID string
}

func (e *ErrVersionConflict) Error() string {
	return "store: version conflict for " + e.TaskName + "/" + e.InstanceID
}
