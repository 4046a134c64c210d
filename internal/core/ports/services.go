package ports

import (
	"context"

	"chatnet/internal/core/domain"
)

type RoomService interface {
	// CreateOrFindRoom resolves the room for requester+otherMembers,
	// creating one when no existing room matches the configured dedup
	// policy. The returned bool is true when a new room was created.
	CreateOrFindRoom(ctx context.Context, requester domain.UserID, otherMembers []domain.UserID) (*domain.ChatRoom, bool, error)
	GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context, user domain.UserID) ([]*domain.ChatRoom, error)
	// IsMember reports whether user may read and write roomID.
	IsMember(ctx context.Context, roomID domain.RoomID, user domain.UserID) (bool, error)
}

type MessageService interface {
	// ListMessages returns the history of roomID, oldest first. Returns
	// domain.ErrRoomNotFound when requester is not a member.
	ListMessages(ctx context.Context, roomID domain.RoomID, requester domain.UserID) ([]*domain.Message, error)
	// PostMessage appends a message. Returns domain.ErrRoomNotFound for
	// non-members and domain.ErrEmptyContent for blank content.
	PostMessage(ctx context.Context, roomID domain.RoomID, sender domain.UserID, content string) (*domain.Message, error)
}

// RoomLocker serializes room creation for a given member-set key. The
// in-process implementation uses a keyed mutex; the redis implementation
// uses a SET NX lock so two API processes cannot race a create.
type RoomLocker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}
