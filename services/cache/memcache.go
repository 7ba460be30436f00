package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheStore implements Store using memcached. Keys are hashed since
// memcached caps them at 250 bytes and search URLs can run longer.
type MemcacheStore struct {
	client *memcache.Client
}

var _ Store = (*MemcacheStore)(nil)

// NewMemcacheStore creates a new memcached-backed store
func NewMemcacheStore(serverAddr string) *MemcacheStore {
	return &MemcacheStore{
		client: memcache.New(serverAddr),
	}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a value from memcached
func (m *MemcacheStore) Get(_ context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(hashKey(key))
	if err == memcache.ErrCacheMiss {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcached with an expiration time
func (m *MemcacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        hashKey(key),
		Value:      value,
		Expiration: int32(ttl.Seconds()),
	})
}

// Delete removes a value from memcached
func (m *MemcacheStore) Delete(_ context.Context, key string) error {
	err := m.client.Delete(hashKey(key))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Close is a no-op; the memcache client holds no closable state
func (m *MemcacheStore) Close() error {
	return nil
}
