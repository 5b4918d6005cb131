package training

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockKey is the redis key guarding training runs across processes.
const LockKey = "studyloop:training:lock"

// Lock serializes training runs. Acquire returns false when another run
// holds the lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// releaseScript deletes the lock only when this process still owns it, so an
// expired lease cannot release a newer holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock is a SETNX lease with a TTL. The TTL bounds how long a crashed
// trainer can block subsequent runs.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock creates a lock on the shared training key.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    LockKey,
		ttl:    ttl,
		token:  uuid.New().String(),
	}
}

// Acquire attempts to take the lease.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire training lock: %w", err)
	}
	return ok, nil
}

// Release drops the lease if this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release training lock: %w", err)
	}
	return nil
}

// LocalLock serializes training within a single process. It is the fallback
// when no redis is configured.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates an in-process lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire takes the lock without blocking.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Release drops the lock. Calling it without holding the lock is a
// programming error and panics, same as sync.Mutex.
func (l *LocalLock) Release(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}
