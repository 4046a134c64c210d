package memory

import (
	"context"
	"sync"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
)

type MemoryMessageRepository struct {
	messages map[domain.RoomID][]*domain.Message
	mu       sync.RWMutex
}

func NewMemoryMessageRepository() ports.MessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[domain.RoomID][]*domain.Message),
	}
}

func (r *MemoryMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	r.messages[msg.RoomID] = append(r.messages[msg.RoomID], &stored)
	return nil
}

func (r *MemoryMessageRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.messages[roomID]
	result := make([]*domain.Message, 0, len(history))
	for _, msg := range history {
		c := *msg
		result = append(result, &c)
	}
	// Append order equals timestamp order: the message service hands out
	// non-decreasing timestamps per room.
	return result, nil
}
