// Package registry resolves persisted taskName strings to executable Task
// definitions, and defines the capability objects user handlers use to
// mutate the store for the one execution they were invoked for.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/minisource/dbscheduler/internal/store"
)

// Instance is the in-memory view of an Execution handed to task code: just
// enough to run the body and identify the row, without exposing store
// internals like Version.
type Instance struct {
	TaskName      string
	InstanceID    string
	Data          []byte
	ExecutionTime time.Time
}

// InstanceOf projects the fields of a persisted Execution that task bodies
// are allowed to see.
func InstanceOf(exec store.Execution) Instance {
	return Instance{
		TaskName:      exec.TaskName,
		InstanceID:    exec.InstanceID,
		Data:          exec.Data,
		ExecutionTime: exec.ExecutionTime,
	}
}

// ExecutionOps is the scoped capability passed to completion, failure, and
// dead-execution handlers. It only operates on the one execution it was
// built for — never the whole store — per spec.md §9 ("Handlers are user
// code").
type ExecutionOps struct {
	store     store.Store
	execution store.Execution
}

// NewExecutionOps builds the capability object for exec, bound to s.
func NewExecutionOps(s store.Store, exec store.Execution) *ExecutionOps {
	return &ExecutionOps{store: s, execution: exec}
}

// Remove deletes the bound execution.
func (o *ExecutionOps) Remove(ctx context.Context) error {
	return o.store.Remove(ctx, o.execution)
}

// Reschedule reschedules the bound execution to newTime, recording success
// or failure bookkeeping.
func (o *ExecutionOps) Reschedule(ctx context.Context, newTime time.Time, success, failure *time.Time, consecutiveFailures int) error {
	return o.store.Reschedule(ctx, o.execution, newTime, success, failure, consecutiveFailures)
}

// CompletionHandler is invoked when a task body returns without error.
type CompletionHandler func(ctx context.Context, exec store.Execution, ops *ExecutionOps) error

// FailureHandler is invoked when a task body returns an error or panics.
type FailureHandler func(ctx context.Context, exec store.Execution, cause error, ops *ExecutionOps) error

// DeadExecutionHandler is invoked by the dead-detector for a picked
// execution whose heartbeat is too old.
type DeadExecutionHandler func(ctx context.Context, exec store.Execution, ops *ExecutionOps) error

// TaskFunc is the user-supplied body of a task. It receives the Instance
// being executed and should return an error (or panic) on failure.
type TaskFunc func(ctx context.Context, instance Instance) error

// Task is a named unit of work resolvable from a persisted taskName.
type Task struct {
	Name            string
	Execute         TaskFunc
	OnComplete      CompletionHandler
	OnFailure       FailureHandler
	OnDeadExecution DeadExecutionHandler
}

// Registry is a name -> Task lookup, set once at construction and read
// concurrently by the scheduler's workers and dead-detector loop.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds or replaces a Task definition. Not safe to call
// concurrently with Resolve in a hot path beyond normal RWMutex semantics;
// intended to be called during startup wiring.
func (r *Registry) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name] = t
}

// Resolve looks up a task by name. A missing task is an expected
// operational condition (rolling deploys adding task types) — the caller
// logs and skips rather than treating it as an error.
func (r *Registry) Resolve(taskName string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskName]
	return t, ok
}
