package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisMessageRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisMessageRepository(client *redis.Client) ports.MessageRepository {
	return &RedisMessageRepository{
		client: client,
		prefix: "chatnet:messages:",
	}
}

// historyKey holds a room's messages as a Redis list in append order.
func (r *RedisMessageRepository) historyKey(roomID domain.RoomID) string {
	return r.prefix + string(roomID)
}

func (r *RedisMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.client.RPush(ctx, r.historyKey(msg.RoomID), data).Err(); err != nil {
		return fmt.Errorf("failed to append message in Redis: %w", err)
	}
	return nil
}

func (r *RedisMessageRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	entries, err := r.client.LRange(ctx, r.historyKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message history from Redis: %w", err)
	}

	messages := make([]*domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}
