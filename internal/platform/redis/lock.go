package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// pollInterval is how often a blocked Lock retries SET NX.
const pollInterval = 100 * time.Millisecond

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = backend.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker is a distributed mutex on Redis SET NX PX. A holder that dies
// releases the lock implicitly when ttl expires.
type Locker struct {
	client *backend.Client
	ttl    time.Duration
}

// NewLocker creates a Locker whose locks expire after ttl.
func NewLocker(client *backend.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

func lockKey(key string) string {
	return KeyPrefix + "lock:" + key
}

// Lock blocks until key is acquired or ctx is done. The returned function
// releases the lock; releasing after expiry is a no-op.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	k := lockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{k}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
