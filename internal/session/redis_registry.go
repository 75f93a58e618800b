package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the slot only when the caller still owns it, so a
// slow instance cannot free a slot a newer session re-acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`

const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type redisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry builds a registry shared across orchestrator instances.
func NewRedisRegistry(client *redis.Client, prefix string) Registry {
	if prefix == "" {
		prefix = "session:slot"
	}
	return &redisRegistry{client: client, prefix: prefix}
}

func (r *redisRegistry) key(ticketID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, ticketID)
}

func (r *redisRegistry) Acquire(ctx context.Context, ticketID, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(ticketID), sessionID, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	// Re-acquire succeeds for the current holder, e.g. a retried start.
	holder, err := r.client.Get(ctx, r.key(ticketID)).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return holder == sessionID, nil
}

func (r *redisRegistry) Release(ctx context.Context, ticketID, sessionID string) error {
	return r.client.Eval(ctx, releaseScript, []string{r.key(ticketID)}, sessionID).Err()
}

func (r *redisRegistry) Refresh(ctx context.Context, ticketID, sessionID string, ttl time.Duration) error {
	return r.client.Eval(ctx, refreshScript, []string{r.key(ticketID)}, sessionID, ttl.Milliseconds()).Err()
}
