package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a Redis SET NX lock with background renewal.
type Lock struct {
	client    *redis.Client
	key       string
	value     string // unique identifier for this lock holder
	ttl       time.Duration
	stopRenew chan struct{}
}

// NewLock creates a lock for key. The lock is not held until Lock or
// TryLock succeeds.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    client,
		key:       key,
		value:     generateLockValue(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func generateLockValue() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Lock acquires the lock, polling until available or the timeout elapses.
func (l *Lock) Lock(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if acquired {
			go l.renew(ctx)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock acquisition timeout")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Unlock releases the lock. A Lua script ensures only the holder's value is
// deleted.
func (l *Lock) Unlock(ctx context.Context) error {
	close(l.stopRenew)

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if result.(int64) == 0 {
		return fmt.Errorf("lock was not held by this instance")
	}
	return nil
}

func (l *Lock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			currentValue, err := l.client.Get(ctx, l.key).Result()
			if err != nil {
				return
			}
			if currentValue != l.value {
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)

		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RoomLocker serializes room creation across processes sharing one Redis.
// It satisfies the service layer's RoomLocker port.
type RoomLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRoomLocker(client *redis.Client, prefix string, ttl time.Duration) *RoomLocker {
	return &RoomLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// WithLock runs fn while holding the lock for key.
func (rl *RoomLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	lock := NewLock(rl.client, rl.prefix+key, rl.ttl)
	if err := lock.Lock(ctx, rl.ttl); err != nil {
		return err
	}
	defer lock.Unlock(ctx)

	return fn()
}
