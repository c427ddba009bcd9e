// Package cache provides short-lived key stores used to suppress duplicate
// deadline reminders.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup marks keys with SET NX and a TTL so that several server
// instances share one view.
type RedisDedup struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisDedup creates a RedisDedup storing keys under prefix
func NewRedisDedup(rdb *redis.Client, prefix string) *RedisDedup {
	return &RedisDedup{rdb: rdb, prefix: prefix}
}

// MarkOnce reports true when the key was not present
func (r *RedisDedup) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, r.prefix+key, 1, ttl).Result()
}

// MemoryDedup is a process-local MarkOnce store
type MemoryDedup struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDedup creates an empty MemoryDedup
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkOnce reports true when the key is absent or expired
func (m *MemoryDedup) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiresAt, ok := m.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}

	for k, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = now.Add(ttl)
	return true, nil
}
