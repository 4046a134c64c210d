package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisRoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "chatnet:room:",
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

// memberIndexKey is the per-user set of room ids used by ListByMember.
func (r *RedisRoomRepository) memberIndexKey(user domain.UserID) string {
	return "chatnet:user:" + string(user) + ":rooms"
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.ChatRoom) error {
	if len(room.Members) == 0 {
		return domain.ErrNoMembers
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal chat room: %w", err)
	}

	// The room body and the member indexes go in one pipeline so a member
	// index never points at a missing room.
	pipe := r.client.TxPipeline()
	created := pipe.SetNX(ctx, r.roomKey(room.ID), data, 0)
	for _, member := range room.Members {
		pipe.SAdd(ctx, r.memberIndexKey(member), string(room.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store chat room in Redis: %w", err)
	}
	if !created.Val() {
		return fmt.Errorf("%w: %s", domain.ErrRoomExists, room.ID)
	}

	return nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.ChatRoom, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room from Redis: %w", err)
	}

	var room domain.ChatRoom
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) ListByMember(ctx context.Context, user domain.UserID) ([]*domain.ChatRoom, error) {
	ids, err := r.client.SMembers(ctx, r.memberIndexKey(user)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms for user from Redis: %w", err)
	}

	var rooms []*domain.ChatRoom
	for _, id := range ids {
		room, err := r.GetByID(ctx, domain.RoomID(id))
		if err == domain.ErrRoomNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}
