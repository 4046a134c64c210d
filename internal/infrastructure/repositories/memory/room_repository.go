package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.RoomID]*domain.ChatRoom
	order []domain.RoomID
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]*domain.ChatRoom),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrRoomExists, room.ID)
	}
	if len(room.Members) == 0 {
		return domain.ErrNoMembers
	}

	stored := *room
	stored.Members = append([]domain.UserID(nil), room.Members...)
	r.rooms[room.ID] = &stored
	r.order = append(r.order, room.ID)
	return nil
}

func (r *MemoryRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (r *MemoryRoomRepository) ListByMember(ctx context.Context, user domain.UserID) ([]*domain.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.ChatRoom
	for _, id := range r.order {
		room := r.rooms[id]
		if room.HasMember(user) {
			result = append(result, copyRoom(room))
		}
	}

	// Newest first for display; insertion order breaks creation-time ties.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func copyRoom(room *domain.ChatRoom) *domain.ChatRoom {
	c := *room
	c.Members = append([]domain.UserID(nil), room.Members...)
	return &c
}
