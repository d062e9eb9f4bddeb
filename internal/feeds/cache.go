package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// ErrCacheMiss is returned when no pool is cached for a scope.
var ErrCacheMiss = fmt.Errorf("pool not cached")

// PoolCache stores normalized player pools in Redis so page loads and
// repeated solves within the TTL skip the upstream feed entirely.
type PoolCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPoolCache(client *redis.Client, ttl time.Duration) *PoolCache {
	return &PoolCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *PoolCache) Get(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string) ([]dfs.Player, error) {
	data, err := c.client.Get(ctx, PoolCacheKey(sport, site, slate)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached pool: %w", err)
	}

	var pool []dfs.Player
	if err := json.Unmarshal([]byte(data), &pool); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached pool: %w", err)
	}
	return pool, nil
}

func (c *PoolCache) Set(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string, pool []dfs.Player) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}
	if err := c.client.Set(ctx, PoolCacheKey(sport, site, slate), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache pool: %w", err)
	}
	return nil
}

func (c *PoolCache) Invalidate(ctx context.Context, sport dfs.Sport, site dfs.Site, slate string) error {
	if err := c.client.Del(ctx, PoolCacheKey(sport, site, slate)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate pool: %w", err)
	}
	return nil
}

// PoolCacheKey identifies one normalized pool per sport/site/slate scope
func PoolCacheKey(sport dfs.Sport, site dfs.Site, slate string) string {
	if slate == "" {
		slate = "main"
	}
	return fmt.Sprintf("pool:%s:%s:%s", sport, site, slate)
}
