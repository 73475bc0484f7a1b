package stats

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// incrAndPublish atomically increments the per-event counter and publishes
// the event name to a channel in one round trip, generalized from the
// teacher's check-and-delete/check-and-extend lock scripts
// (internal/scheduler/lock.go) into a single counter-and-announce script.
const incrAndPublishScript = `
local count = redis.call("incr", KEYS[1])
redis.call("publish", KEYS[2], ARGV[1])
return count
`

// RedisSink publishes scheduler events to Redis: a durable per-event
// counter plus a pub/sub channel for live dashboards. It never blocks the
// caller on a slow or unavailable Redis — failures are swallowed, since a
// statistics sink must never be able to stall the execution loop.
type RedisSink struct {
	client    *redis.Client
	script    *redis.Script
	keyPrefix string
	channel   string
}

// NewRedisSink builds a sink that counts under keyPrefix+":"+event and
// publishes raw event names on channel.
func NewRedisSink(client *redis.Client, keyPrefix, channel string) *RedisSink {
	return &RedisSink{
		client:    client,
		script:    redis.NewScript(incrAndPublishScript),
		keyPrefix: keyPrefix,
		channel:   channel,
	}
}

// Emit fires the script asynchronously in its own goroutine against
// context.Background() (no deadline); call sites never wait on Redis.
func (s *RedisSink) Emit(e Event, labels map[string]string) {
	go func() {
		ctx := context.Background()
		key := fmt.Sprintf("%s:%s", s.keyPrefix, e)
		_, _ = s.script.Run(ctx, s.client, []string{key, s.channel}, string(e)).Result()
	}()
}
