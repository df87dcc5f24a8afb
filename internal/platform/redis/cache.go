package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Cache stores opaque values under a prefix with a fixed TTL.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewCache creates a Cache. A zero ttl keeps entries until evicted.
func NewCache(client *backend.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: KeyPrefix + prefix,
		ttl:    ttl,
	}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get returns the value for key; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
