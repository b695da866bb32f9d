package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReferenceCache implements ports.ReferenceCache using Redis. It marks
// deposit references as settled so repeated confirmations can short-circuit
// before touching storage. The guarded status transition in the
// transaction store remains the source of truth.
type ReferenceCache struct {
	client *goredis.Client
	prefix string
}

// NewReferenceCache creates a Redis-backed settled-reference cache.
func NewReferenceCache(client *goredis.Client) *ReferenceCache {
	return &ReferenceCache{
		client: client,
		prefix: "deposit:settled:",
	}
}

// IsSettled returns true when the reference has been marked settled.
func (c *ReferenceCache) IsSettled(ctx context.Context, reference string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+reference).Result()
	if err != nil {
		return false, fmt.Errorf("redis reference check: %w", err)
	}
	return n > 0, nil
}

// MarkSettled records a settled reference with a TTL.
func (c *ReferenceCache) MarkSettled(ctx context.Context, reference string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+reference, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis reference mark: %w", err)
	}
	return nil
}
