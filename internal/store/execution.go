// Package store defines the ExecutionStore contract — the durable,
// concurrency-safe repository of Executions that is the sole coordination
// surface between scheduler nodes — plus an in-memory reference
// implementation and a GORM/Postgres-backed production implementation.
package store

import "time"

// Execution is the persistent unit the scheduler operates on. See
// spec.md §3 for the full invariant list; the two load-bearing ones are:
//
//	(taskName, instanceId) is unique across the store (I1)
//	picked == true implies PickedBy != "" and LastHeartbeat != nil (I2)
type Execution struct {
	TaskName             string
	InstanceID           string
	Data                 []byte
	ExecutionTime        time.Time
	Picked               bool
	PickedBy             string
	LastHeartbeat        *time.Time
	LastSuccess          *time.Time
	LastFailure          *time.Time
	ConsecutiveFailures  int
	Version              int
}

// Identity returns the (taskName, instanceId) pair that uniquely identifies
// this execution in the store.
func (e Execution) Identity() (string, string) {
	return e.TaskName, e.InstanceID
}

// key is the internal map key used by MemoryStore.
type key struct {
	taskName   string
	instanceID string
}

func keyOf(taskName, instanceID string) key {
	return key{taskName: taskName, instanceID: instanceID}
}
