// Package redis holds the Redis-backed catalog response cache and the
// distributed lock used to serialize request transitions between two
// libraries.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/imhighyat/book-swap-api/internal/config"
	backend "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "bookswap:"

// NewClient creates a client for cfg and checks the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
