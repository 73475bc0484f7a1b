package scheduler

import "time"

// Config holds the scheduler's tunables (spec.md §6).
type Config struct {
	// SchedulerName identifies this node as PickedBy in the store.
	SchedulerName string

	// ThreadpoolSize is the number of workers executing PickAndExecute
	// jobs concurrently.
	ThreadpoolSize int

	// PollingLimit bounds how many due executions one due-poll reads.
	PollingLimit int

	// PollingInterval is the due-poller's periodic cadence.
	PollingInterval time.Duration

	// HeartbeatInterval is the heartbeat-updater's cadence. DetectDead
	// runs at 2x this and MaxAgeBeforeDead is 4x this, per spec.md §4.6.
	HeartbeatInterval time.Duration

	// ShutdownWait bounds how long Stop waits for in-flight workers to
	// drain before giving up. Defaults to 30 minutes if zero.
	ShutdownWait time.Duration

	// EnableImmediateExecution lets the client layer wake the due-poller
	// early for schedule calls whose ExecutionTime is already due.
	EnableImmediateExecution bool
}

// DetectDeadCadence returns the dead-detector loop's polling interval.
func (c Config) DetectDeadCadence() time.Duration {
	return 2 * c.HeartbeatInterval
}

// MaxAgeBeforeDead returns the heartbeat age past which a picked execution
// is considered dead.
func (c Config) MaxAgeBeforeDead() time.Duration {
	return 4 * c.HeartbeatInterval
}

// withDefaults fills in zero-valued tunables with spec.md defaults.
func (c Config) withDefaults() Config {
	if c.ThreadpoolSize <= 0 {
		c.ThreadpoolSize = 10
	}
	if c.PollingLimit <= 0 {
		c.PollingLimit = 100
	}
	if c.PollingInterval <= 0 {
		c.PollingInterval = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Minute
	}
	if c.ShutdownWait <= 0 {
		c.ShutdownWait = 30 * time.Minute
	}
	if c.SchedulerName == "" {
		c.SchedulerName = "scheduler"
	}
	return c
}
