package services

import (
	"context"
	"sync"

	"chatnet/internal/core/ports"
)

// keyedRoomLocker serializes create-or-find per member-set key within a
// single process.
type keyedRoomLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedRoomLocker() ports.RoomLocker {
	return &keyedRoomLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *keyedRoomLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	l.mu.Lock()
	lock, exists := l.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}
