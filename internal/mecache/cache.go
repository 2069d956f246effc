// Package mecache is the short-lived read-through cache in front of the
// Discord calls made by /api/me.
package mecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores an already rendered payload per user id.
type Cache interface {
	Get(ctx context.Context, userID string) ([]byte, bool, error)
	Set(ctx context.Context, userID string, payload []byte, ttl time.Duration) error
}

type entry struct {
	expiresAt time.Time
	payload   []byte
}

// MemoryCache expires entries lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryCache) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, userID)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (m *MemoryCache) Set(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	if userID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = entry{expiresAt: m.now().Add(ttl), payload: payload}
	return nil
}

// RedisCache keeps entries under "me:<userID>" with the TTL as Redis expiry,
// so the cache is shared between API replicas.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "me:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, userID string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	if userID == "" {
		return nil
	}
	return r.client.Set(ctx, r.prefix+userID, payload, ttl).Err()
}
