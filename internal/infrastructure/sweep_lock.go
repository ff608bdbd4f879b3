package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SweepLock serializes the reconciler's sweeps across coordinator
// instances so a sweep in progress never overlaps itself (§4.5). With no
// Redis configured it falls back to an in-process mutex, which is enough
// for a single instance but not across a fleet.
type SweepLock interface {
	// TryAcquire attempts to take the named lock for ttl. It returns false,
	// nil if another holder currently has it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// RedisSweepLock implements SweepLock with a Redis SET NX EX lease.
type RedisSweepLock struct {
	client *redis.Client
}

func NewRedisSweepLock(client *redis.Client) *RedisSweepLock {
	return &RedisSweepLock{client: client}
}

func (l *RedisSweepLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *RedisSweepLock) Release(ctx context.Context, name string) error {
	return l.client.Del(ctx, lockKey(name)).Err()
}

func lockKey(name string) string {
	return "order-saga-coordinator:sweep-lock:" + name
}

// InProcessSweepLock is the single-instance fallback used when no Redis
// endpoint is configured.
type InProcessSweepLock struct {
	mu      sync.Mutex
	holders map[string]time.Time
}

func NewInProcessSweepLock() *InProcessSweepLock {
	return &InProcessSweepLock{holders: make(map[string]time.Time)}
}

func (l *InProcessSweepLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.holders[name]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.holders[name] = time.Now().Add(ttl)
	return true, nil
}

func (l *InProcessSweepLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holders, name)
	return nil
}
