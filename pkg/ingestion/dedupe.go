package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultDedupeTTL = 24 * time.Hour

// Deduplicator remembers event keys for a while. Claim reports false when the
// key was already claimed; Release forgets it so a retried delivery is
// processed again.
type Deduplicator interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type MemoryDeduplicator struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	return &MemoryDeduplicator{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

func (d *MemoryDeduplicator) Claim(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	for seenKey, expiresAt := range d.seen {
		if now.After(expiresAt) {
			delete(d.seen, seenKey)
		}
	}

	if _, ok := d.seen[key]; ok {
		return false, nil
	}

	d.seen[key] = now.Add(d.ttl)

	return true, nil
}

func (d *MemoryDeduplicator) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, key)

	return nil
}

// RedisDeduplicator shares claims across server instances.
type RedisDeduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduplicator(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduplicator {
	if prefix == "" {
		prefix = "automations:events"
	}

	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	return &RedisDeduplicator{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduplicator) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := d.client.SetNX(ctx, d.key(key), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", key, err)
	}

	return claimed, nil
}

func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", key, err)
	}

	return nil
}

func (d *RedisDeduplicator) key(key string) string {
	return fmt.Sprintf("%s:%s", d.prefix, key)
}
