package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/platform/ttlcache"
)

const memoryCacheMaxSize = 256

// MemoryCache keeps snapshots in process.
type MemoryCache struct {
	entries *ttlcache.Cache[string, *Snapshot]
}

func NewMemoryCache(ttl time.Duration, opts ...ttlcache.Option[string, *Snapshot]) (*MemoryCache, error) {
	entries, err := ttlcache.New[string, *Snapshot](memoryCacheMaxSize, ttl, opts...)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Snapshot, bool, error) {
	s, ok := c.entries.Get(key)
	return s, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, snapshot *Snapshot) error {
	c.entries.Set(key, snapshot)
	return nil
}

// RedisCache shares snapshots between instances. Entries expire through the
// key TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return &s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, snapshot *Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
