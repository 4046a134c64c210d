package ports

import (
	"context"

	"chatnet/internal/core/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.ChatRoom) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.ChatRoom, error)
	// ListByMember returns all rooms containing user, newest first.
	ListByMember(ctx context.Context, user domain.UserID) ([]*domain.ChatRoom, error)
}

type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message) error
	// ListByRoom returns the room's history in timestamp ascending order.
	ListByRoom(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error)
}
