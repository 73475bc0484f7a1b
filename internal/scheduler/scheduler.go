// Package scheduler is the orchestrator: it owns the due-poller,
// dead-detector, and heartbeat-updater loops, dispatches picked work onto
// a bounded worker pool, and drives the CREATED -> STARTED ->
// SHUTTING_DOWN lifecycle. This is the correctness-critical core described
// in spec.md §4.6.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/minisource/dbscheduler/internal/batch"
	"github.com/minisource/dbscheduler/internal/clock"
	"github.com/minisource/dbscheduler/internal/logx"
	"github.com/minisource/dbscheduler/internal/pool"
	"github.com/minisource/dbscheduler/internal/registry"
	"github.com/minisource/dbscheduler/internal/stats"
	"github.com/minisource/dbscheduler/internal/store"
	"github.com/minisource/dbscheduler/internal/waiter"
)

// StartupHook runs once before the scheduler's loops launch. Errors are
// logged and swallowed so one bad hook cannot block startup (spec.md §7).
type StartupHook func(ctx context.Context) error

// Scheduler is the orchestrator described in spec.md §4.6.
type Scheduler struct {
	cfg      Config
	store    store.Store
	registry *registry.Registry
	sink     stats.Sink
	clock    clock.Clock

	dueWaiter       *waiter.Waiter
	deadWaiter      *waiter.Waiter
	heartbeatWaiter *waiter.Waiter

	workerPool *pool.Pool

	life lifecycle

	currentGen int64 // atomic

	currentlyProcessing *currentlyExecuting

	startupHooks []StartupHook

	loopWG sync.WaitGroup
}

// New constructs a Scheduler. It does not start any loops; call Start.
func New(cfg Config, s store.Store, r *registry.Registry, sink stats.Sink, clk clock.Clock, hooks ...StartupHook) *Scheduler {
	if sink == nil {
		sink = stats.NoopSink{}
	}
	if clk == nil {
		clk = clock.New()
	}
	cfg = cfg.withDefaults()

	return &Scheduler{
		cfg:                 cfg,
		store:               s,
		registry:            r,
		sink:                sink,
		clock:               clk,
		dueWaiter:           waiter.New(),
		deadWaiter:          waiter.New(),
		heartbeatWaiter:     waiter.New(),
		workerPool:          pool.New(cfg.ThreadpoolSize),
		currentlyProcessing: newCurrentlyExecuting(),
		startupHooks:        hooks,
	}
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	return s.life.get()
}

// WakeDue wakes the due-poller ahead of its next periodic tick. Exposed as
// a one-way capability the client layer calls for immediate-execution
// scheduling (spec.md §9, "Cyclic reference" design note), instead of the
// client layer holding a reference back into the scheduler's internals.
func (s *Scheduler) WakeDue() {
	s.dueWaiter.Wake()
}

// Start runs onStartup hooks, launches the three periodic loops, and
// transitions the lifecycle to STARTED. Calling Start more than once is a
// no-op after the first call.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.life.transitionTo(StateStarted) {
		return
	}

	for _, hook := range s.startupHooks {
		if err := hook(ctx); err != nil {
			logx.Errorf("scheduler: onStartup hook failed, continuing: %v", err)
		}
	}

	s.workerPool.Start(ctx)

	s.loopWG.Add(3)
	go s.dueLoop(ctx)
	go s.deadDetectorLoop(ctx)
	go s.heartbeatLoop(ctx)
}

// Stop is idempotent. On first call it transitions to SHUTTING_DOWN,
// releases the three loop waiters, waits briefly for the loops to notice,
// then drains the worker pool up to cfg.ShutdownWait.
func (s *Scheduler) Stop() {
	if !s.life.transitionTo(StateShuttingDown) {
		logx.Warnf("scheduler: stop called but already shutting down")
		return
	}

	s.dueWaiter.Cancel()
	s.deadWaiter.Cancel()
	s.heartbeatWaiter.Cancel()

	loopsDone := make(chan struct{})
	go func() {
		s.loopWG.Wait()
		close(loopsDone)
	}()
	select {
	case <-loopsDone:
	case <-time.After(5 * time.Second):
		logx.Warnf("scheduler: loops did not stop within 5s of cancellation")
	}

	drained := s.workerPool.Stop(s.cfg.ShutdownWait)
	if !drained {
		for _, e := range s.currentlyProcessing.snapshot() {
			logx.Warnf("scheduler: shutdown timed out with %s/%s still running (started %s ago)",
				e.execution.TaskName, e.execution.InstanceID, time.Since(e.startedAt))
		}
	}
}

// ---- due-poller loop (spec.md §4.6a) ----

func (s *Scheduler) dueLoop(ctx context.Context) {
	defer s.loopWG.Done()
	for {
		s.dueWaiter.WaitFor(s.cfg.PollingInterval)
		if s.life.isShuttingDown() {
			return
		}
		s.runExecuteDue(ctx)
	}
}

func (s *Scheduler) runExecuteDue(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.store.GetDue(ctx, now, s.cfg.PollingLimit)
	if err != nil {
		logx.Errorf("scheduler: getDue failed: %v", err)
		s.sink.Emit(stats.UnexpectedError, nil)
		return
	}

	thisGen := atomic.AddInt64(&s.currentGen, 0) + 1
	tracker := batch.New(thisGen, len(due), s.cfg.PollingLimit, s.cfg.ThreadpoolSize)

	for _, exec := range due {
		exec := exec
		s.workerPool.Submit(func() {
			s.pickAndExecute(ctx, exec, tracker)
		})
	}

	// Publish currentGen only after every job has been submitted: any
	// worker that dequeues and sees gen == currentGen is current, any
	// worker whose tracker gen is strictly less has been superseded by a
	// fresh poll that already happened (spec.md §4.6 rationale).
	atomic.StoreInt64(&s.currentGen, thisGen)

	s.sink.Emit(stats.RanExecuteDue, nil)
}

// ---- PickAndExecute (spec.md §4.6 algorithm) ----

func (s *Scheduler) pickAndExecute(ctx context.Context, candidate store.Execution, tracker *batch.Tracker) {
	defer tracker.OneExecutionDone(s.dueWaiter.Wake)

	if s.life.isShuttingDown() { // B1
		return
	}

	currentGen := atomic.LoadInt64(&s.currentGen)
	if tracker.IsOlderGenerationThan(currentGen) { // B2
		tracker.MarkStale()
		s.sink.Emit(stats.Stale, map[string]string{"task": candidate.TaskName})
		return
	}

	now := s.clock.Now()
	picked, ok, err := s.store.Pick(ctx, candidate, s.cfg.SchedulerName, now)
	if err != nil {
		logx.Errorf("scheduler: pick failed for %s/%s: %v", candidate.TaskName, candidate.InstanceID, err)
		s.sink.Emit(stats.UnexpectedError, nil)
		return
	}
	if !ok {
		s.sink.Emit(stats.AlreadyPicked, map[string]string{"task": candidate.TaskName})
		return
	}

	s.currentlyProcessing.put(picked, now) // B3: sole entry point
	s.sink.Emit(stats.Executed, map[string]string{"task": picked.TaskName})

	defer func() {
		if !s.currentlyProcessing.remove(picked) {
			s.sink.Emit(stats.UnexpectedError, map[string]string{"reason": "missing from currentlyProcessing"})
		}
	}()

	// pickKey correlates every log line this attempt produces, since
	// (TaskName, InstanceID) alone doesn't distinguish successive attempts
	// at the same execution across retries.
	pickKey := uuid.NewString()[:8]
	s.runTask(ctx, picked, pickKey)
}

func (s *Scheduler) runTask(ctx context.Context, picked store.Execution, pickKey string) {
	task, ok := s.registry.Resolve(picked.TaskName)
	if !ok {
		logx.Errorf("scheduler[%s]: no task registered for %q, leaving %s picked for dead-detection", pickKey, picked.TaskName, picked.InstanceID)
		s.sink.Emit(stats.UnresolvedTaskName, map[string]string{"task": picked.TaskName})
		return
	}

	ops := registry.NewExecutionOps(s.store, picked)

	runErr := s.invokeTaskBody(ctx, task, picked, pickKey)
	if runErr == nil {
		if task.OnComplete != nil {
			if err := task.OnComplete(ctx, picked, ops); err != nil {
				logx.Errorf("scheduler[%s]: completion handler failed for %s/%s: %v", pickKey, picked.TaskName, picked.InstanceID, err)
				s.sink.Emit(stats.CompletionHandlerError, map[string]string{"task": picked.TaskName})
				return // left picked; dead-detector recovers (spec.md §7 category 3)
			}
		}
		s.sink.Emit(stats.Completed, map[string]string{"task": picked.TaskName})
		return
	}

	if task.OnFailure != nil {
		if err := task.OnFailure(ctx, picked, runErr, ops); err != nil {
			logx.Errorf("scheduler[%s]: failure handler failed for %s/%s: %v", pickKey, picked.TaskName, picked.InstanceID, err)
			s.sink.Emit(stats.FailureHandlerError, map[string]string{"task": picked.TaskName})
			return
		}
	}
	s.sink.Emit(stats.Failed, map[string]string{"task": picked.TaskName})
}

// invokeTaskBody runs the task body, converting a panic into an error so a
// misbehaving user task cannot take down a worker goroutine.
func (s *Scheduler) invokeTaskBody(ctx context.Context, task registry.Task, picked store.Execution, pickKey string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			logx.Errorf("scheduler[%s]: recovered panic running %s/%s: %v", pickKey, picked.TaskName, picked.InstanceID, r)
		}
	}()
	return task.Execute(ctx, registry.InstanceOf(picked))
}

// ---- dead-detector loop (spec.md §4.6b) ----

func (s *Scheduler) deadDetectorLoop(ctx context.Context) {
	defer s.loopWG.Done()
	for {
		s.deadWaiter.WaitFor(s.cfg.DetectDeadCadence())
		if s.life.isShuttingDown() {
			return
		}
		s.runDetectDead(ctx)
	}
}

func (s *Scheduler) runDetectDead(ctx context.Context) {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.MaxAgeBeforeDead())

	old, err := s.store.GetOldExecutions(ctx, cutoff)
	if err != nil {
		logx.Errorf("scheduler: getOldExecutions failed: %v", err)
		s.sink.Emit(stats.UnexpectedError, nil)
		return
	}

	for _, exec := range old {
		task, ok := s.registry.Resolve(exec.TaskName)
		if !ok {
			logx.Errorf("scheduler: dead-detection found unresolved task %q for %s, leaving picked", exec.TaskName, exec.InstanceID)
			s.sink.Emit(stats.UnresolvedTaskName, map[string]string{"task": exec.TaskName})
			continue
		}
		s.sink.Emit(stats.DeadExecution, map[string]string{"task": exec.TaskName})

		if task.OnDeadExecution == nil {
			continue
		}
		ops := registry.NewExecutionOps(s.store, exec)
		if err := task.OnDeadExecution(ctx, exec, ops); err != nil {
			logx.Errorf("scheduler: dead-execution handler failed for %s/%s: %v", exec.TaskName, exec.InstanceID, err)
		}
	}

	s.sink.Emit(stats.RanDetectDead, nil)
}

// ---- heartbeat loop (spec.md §4.6c) ----

func (s *Scheduler) heartbeatLoop(ctx context.Context) {
	defer s.loopWG.Done()
	for {
		s.heartbeatWaiter.WaitFor(s.cfg.HeartbeatInterval)
		if s.life.isShuttingDown() {
			return
		}
		s.runUpdateHeartbeats(ctx)
	}
}

func (s *Scheduler) runUpdateHeartbeats(ctx context.Context) {
	now := s.clock.Now()
	for _, e := range s.currentlyProcessing.snapshot() {
		if err := s.store.UpdateHeartbeat(ctx, e.execution, now); err != nil {
			logx.Errorf("scheduler: heartbeat update failed for %s/%s: %v", e.execution.TaskName, e.execution.InstanceID, err)
		}
	}
	s.sink.Emit(stats.RanUpdateHeartbeats, nil)
}

// CurrentlyProcessingCount exposes the size of currentlyProcessing for
// health checks and tests.
func (s *Scheduler) CurrentlyProcessingCount() int {
	return s.currentlyProcessing.len()
}
