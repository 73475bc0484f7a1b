package scheduler

import (
	"sync"
	"time"

	"github.com/minisource/dbscheduler/internal/store"
)

type execKey struct {
	taskName   string
	instanceID string
}

func keyFor(e store.Execution) execKey {
	return execKey{taskName: e.TaskName, instanceID: e.InstanceID}
}

// currentlyExecuting is the per-node map from pick-key to start-time for
// executions this node is responsible for heartbeating. Guarded by a
// mutex since it's written by workers and read in full by the heartbeat
// loop.
type currentlyExecuting struct {
	mu    sync.Mutex
	rows  map[execKey]entry
}

type entry struct {
	execution store.Execution
	startedAt time.Time
}

func newCurrentlyExecuting() *currentlyExecuting {
	return &currentlyExecuting{rows: make(map[execKey]entry)}
}

func (c *currentlyExecuting) put(e store.Execution, startedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[keyFor(e)] = entry{execution: e, startedAt: startedAt}
}

// remove deletes the entry for e and reports whether it was present.
func (c *currentlyExecuting) remove(e store.Execution) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := keyFor(e)
	if _, ok := c.rows[k]; !ok {
		return false
	}
	delete(c.rows, k)
	return true
}

// snapshot returns a copy of all currently-tracked entries.
func (c *currentlyExecuting) snapshot() []entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entry, 0, len(c.rows))
	for _, v := range c.rows {
		out = append(out, v)
	}
	return out
}

func (c *currentlyExecuting) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}
