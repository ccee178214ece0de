// internal/pkg/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	// Allow records a hit and reports whether the key is still within its
	// budget, plus the hits left in the current window.
	Allow(ctx context.Context, key string) (bool, int64, error)
	Reset(ctx context.Context, key string) error
}

type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, max int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}
}

func (r *RedisLimiter) key(k string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.prefix, k)
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, int64, error) {
	k := r.key(key)

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// Set expiration on first hit
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate window: %w", err)
		}
	}

	return count <= r.max, remaining(r.max, count), nil
}

func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// MemoryLimiter is the single-process fallback used when no redis is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	max     int64
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter(max int64, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(m.window)}
		m.buckets[key] = b
	}
	b.count++

	return b.count <= m.max, remaining(m.max, b.count), nil
}

func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
	return nil
}

func remaining(max, count int64) int64 {
	if count >= max {
		return 0
	}
	return max - count
}
