package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/llm-smart-labels/internal/adapters/cache"
	"github.com/mikey/llm-smart-labels/internal/adapters/store"
	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers *Closers
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger, closers *Closers) *CacheFactory {
	return &CacheFactory{
		cfg:     cfg,
		logger:  logger,
		closers: closers,
	}
}

// CreateCacheRepository creates the configured classification cache. It
// returns nil when caching is disabled. The SQL cache shares st.
func (f *CacheFactory) CreateCacheRepository(ctx context.Context, st *store.SQLStore) (core.CacheRepository, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}

	switch cacheCfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		c := cache.NewMemoryCache(f.logger, cacheCfg.CleanupFrequency)
		f.closers.Add(func() error {
			c.Stop()
			return nil
		})
		return c, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, &redis.Options{
			Addr:     cacheCfg.RedisAddr,
			Password: cacheCfg.RedisPassword,
			DB:       cacheCfg.RedisDB,
		}, cacheCfg.RedisPrefix, f.logger)
		if err != nil {
			return nil, err
		}
		f.closers.Add(c.Close)
		return c, nil
	case "sql":
		if st == nil {
			return nil, fmt.Errorf("sql cache requires a store")
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// GetCacheTTL returns the configured cache TTL
func (f *CacheFactory) GetCacheTTL() (time.Duration, error) {
	return f.cfg.GetDuration("cache.ttl")
}
