package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores classification results in Redis. Expiry is delegated to
// Redis key TTLs, so Cleanup has nothing to do.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

type redisEntry struct {
	LabelIDs  []string `json:"label_ids"`
	ExpiresAt int64    `json:"expires_at"`
}

// NewRedisCache creates a new Redis-backed cache and verifies connectivity
func NewRedisCache(ctx context.Context, opts *redis.Options, prefix string, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisCacheFromClient(client, prefix, logger), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves a live cache entry
func (c *RedisCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return nil, ErrNotFound
	}

	return &core.CacheEntry{
		Key:       key,
		LabelIDs:  stored.LabelIDs,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// Set stores a cache entry with a TTL derived from its expiry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	var ttl time.Duration
	if entry.ExpiresAt > 0 {
		ttl = time.Until(time.Unix(entry.ExpiresAt, 0))
		if ttl <= 0 {
			return nil
		}
	}

	raw, err := json.Marshal(redisEntry{LabelIDs: entry.LabelIDs, ExpiresAt: entry.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+entry.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis expires keys itself
func (c *RedisCache) Cleanup(ctx context.Context) error {
	return nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
