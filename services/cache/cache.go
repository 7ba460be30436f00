package cache

import (
	"context"
	"errors"
	"time"

	"carscraper/config"
	"carscraper/logger"
	"carscraper/pkg/errs"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte cache for HTTP responses. A TTL of zero keeps the
// entry forever; expired entries read as misses.
type Store interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend
	Close() error
}

// New builds the store selected by HTTP_CACHE_BACKEND.
func New(cfg *config.Config) (Store, error) {
	var store Store
	var err error

	switch cfg.HTTPCacheBackend {
	case "memory":
		store = NewMemoryStore()
	case "sqlite":
		store, err = NewSQLiteStore(cfg.HTTPCachePath)
	case "memcache":
		store = NewMemcacheStore(cfg.HTTPCacheAddr)
	case "redis":
		store = NewRedisStore(cfg.HTTPCacheAddr)
	default:
		return nil, errs.NewCache("unknown backend "+cfg.HTTPCacheBackend, nil)
	}
	if err != nil {
		return nil, err
	}

	logger.ForCache().Info().Str("backend", cfg.HTTPCacheBackend).Msg("response cache ready")
	return store, nil
}
