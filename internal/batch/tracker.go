// Package batch implements the in-memory bookkeeping for a single due-poll
// batch: its generation number, how many of its jobs are still outstanding,
// and the early-refill trigger that wakes the due-poller once roughly half
// the worker pool has freed up.
package batch

import "sync"

// TriggerRatio is the fraction of the pool that must be busy before a batch
// stops early-triggering refills; early refill fires once half the pool is
// free, i.e. triggerThreshold = ceil(poolSize * (1 - TriggerRatio)).
const TriggerRatio = 0.5

// Tracker is created per due-poll and destroyed once every submitted job in
// it has reported completion via OneExecutionDone.
type Tracker struct {
	mu sync.Mutex

	generationNumber int64
	totalSubmitted    int
	remaining         int
	pollWasFull       bool
	markedStaleCount  int
	triggerThreshold  int
	triggered         bool
}

// New creates a Tracker for a batch of n due executions, tagged with
// generation gen. pollingLimit is the due-poll's configured limit and
// threadpoolSize the worker pool's size; pollWasFull is derived as
// n == pollingLimit.
func New(gen int64, n int, pollingLimit int, threadpoolSize int) *Tracker {
	threshold := ceilDiv(threadpoolSize, 2) // ceil(threadpoolSize * (1 - 0.5))
	return &Tracker{
		generationNumber: gen,
		totalSubmitted:   n,
		remaining:        n,
		pollWasFull:      n == pollingLimit,
		triggerThreshold: threshold,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Generation returns the batch's generation number.
func (t *Tracker) Generation() int64 {
	return t.generationNumber
}

// TotalSubmitted returns how many jobs this batch submitted.
func (t *Tracker) TotalSubmitted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSubmitted
}

// Remaining returns how many of this batch's jobs have not yet reported
// completion.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// MarkedStaleCount returns how many jobs in this batch were discarded for
// being superseded by a later generation.
func (t *Tracker) MarkedStaleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.markedStaleCount
}

// IsOlderGenerationThan reports whether this batch is stale relative to
// currentGen: a batch is superseded once a fresh poll has published a
// strictly larger generation number.
func (t *Tracker) IsOlderGenerationThan(currentGen int64) bool {
	return t.generationNumber < currentGen
}

// MarkStale records that a job belonging to this batch was discarded
// without being picked.
func (t *Tracker) MarkStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markedStaleCount++
}

// OneExecutionDone must be called exactly once per job submitted into this
// batch, regardless of whether the job picked successfully, was skipped, or
// panicked. If this call crosses triggerThreshold workers free (i.e.
// remaining drops to or below it) for the first time, and the poll that
// produced this batch was full, earlyTrigger is invoked to wake the
// due-poller ahead of its next periodic tick.
func (t *Tracker) OneExecutionDone(earlyTrigger func()) {
	t.mu.Lock()
	t.remaining--
	shouldTrigger := !t.triggered && t.pollWasFull && t.remaining <= t.triggerThreshold
	if shouldTrigger {
		t.triggered = true
	}
	t.mu.Unlock()

	if shouldTrigger && earlyTrigger != nil {
		earlyTrigger()
	}
}
