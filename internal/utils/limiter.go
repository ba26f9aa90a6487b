package utils

import (
	"context" // Context for Redis operations
	"sync"    // Guards the in-memory counters
	"time"    // Window length

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
)

const loginFailurePrefix = "login:failures:" // Per-username failure counter

// failureCounter stores failure counts that expire a window after the first failure
type failureCounter interface {
	Count(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, window time.Duration) error
	Clear(ctx context.Context, key string) error
}

// LoginLimiter throttles failed logins per normalized username.
// It fails open: a Redis outage never locks users out.
type LoginLimiter struct {
	counter     failureCounter
	maxFailures int64
	window      time.Duration
}

// NewLoginLimiter counts in Redis when rdb is set and in process memory otherwise
func NewLoginLimiter(rdb *redis.Client, maxFailures int, window time.Duration) *LoginLimiter {
	var counter failureCounter = newMemoryCounter()
	if rdb != nil {
		counter = &redisCounter{rdb: rdb}
	}
	return &LoginLimiter{counter: counter, maxFailures: int64(maxFailures), window: window}
}

// Blocked reports whether key has used up its failures for the current window
func (l *LoginLimiter) Blocked(ctx context.Context, key string) bool {
	if l == nil || l.maxFailures <= 0 {
		return false
	}
	n, err := l.counter.Count(ctx, key)
	if err != nil {
		logrus.WithError(err).Warn("Login limiter unavailable, allowing attempt")
		return false
	}
	return n >= l.maxFailures
}

// RecordFailure counts one failed attempt; the window starts at the first failure
func (l *LoginLimiter) RecordFailure(ctx context.Context, key string) {
	if l == nil {
		return
	}
	if err := l.counter.Incr(ctx, key, l.window); err != nil {
		logrus.WithError(err).Warn("Failed to record login failure")
	}
}

// Reset clears the failure count after a successful login
func (l *LoginLimiter) Reset(ctx context.Context, key string) {
	if l == nil {
		return
	}
	if err := l.counter.Clear(ctx, key); err != nil {
		logrus.WithError(err).Warn("Failed to reset login failures")
	}
}

// redisCounter shares counts across server instances
type redisCounter struct {
	rdb *redis.Client
}

func (r *redisCounter) Count(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, loginFailurePrefix+key).Int64()
	if err == redis.Nil {
		return 0, nil // No recent failures
	}
	return n, err
}

func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) error {
	redisKey := loginFailurePrefix + key
	n, err := r.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return r.rdb.Expire(ctx, redisKey, window).Err()
	}
	return nil
}

func (r *redisCounter) Clear(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, loginFailurePrefix+key).Err()
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

// memoryCounter is used when Redis is not configured
type memoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *memoryCounter) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.expires.After(m.now()) {
		return 0, nil
	}
	return e.count, nil
}

func (m *memoryCounter) Incr(_ context.Context, key string, window time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e, ok := m.entries[key]
	if !ok || !e.expires.After(now) {
		e = memoryEntry{expires: now.Add(window)}
	}
	e.count++
	m.entries[key] = e
	return nil
}

func (m *memoryCounter) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
