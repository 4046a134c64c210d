package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
	"chatnet/pkg/validation"

	"github.com/google/uuid"
)

type messageService struct {
	messageRepo ports.MessageRepository
	roomRepo    ports.RoomRepository

	// lastStamp keeps message timestamps non-decreasing per room even when
	// the wall clock steps backwards between appends.
	mu        sync.Mutex
	lastStamp map[domain.RoomID]time.Time
}

func NewMessageService(messageRepo ports.MessageRepository, roomRepo ports.RoomRepository) ports.MessageService {
	return &messageService{
		messageRepo: messageRepo,
		roomRepo:    roomRepo,
		lastStamp:   make(map[domain.RoomID]time.Time),
	}
}

func (s *messageService) ListMessages(ctx context.Context, roomID domain.RoomID, requester domain.UserID) ([]*domain.Message, error) {
	if err := s.requireMember(ctx, roomID, requester); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByRoom(ctx, roomID)
}

func (s *messageService) PostMessage(ctx context.Context, roomID domain.RoomID, sender domain.UserID, content string) (*domain.Message, error) {
	// Membership is checked before any content validation so a non-member
	// gets the same "not found" answer regardless of payload.
	if err := s.requireMember(ctx, roomID, sender); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidContent, err)
	}

	msg := &domain.Message{
		ID:        domain.MessageID(uuid.New().String()),
		RoomID:    roomID,
		Sender:    sender,
		Content:   content,
		Timestamp: s.nextTimestamp(roomID),
	}

	if err := s.messageRepo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// requireMember maps both "no such room" and "not a member" to
// ErrRoomNotFound so callers cannot probe for room existence.
func (s *messageService) requireMember(ctx context.Context, roomID domain.RoomID, user domain.UserID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(user) {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *messageService) nextTimestamp(roomID domain.RoomID) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now()
	if last, ok := s.lastStamp[roomID]; ok && ts.Before(last) {
		ts = last
	}
	s.lastStamp[roomID] = ts
	return ts
}
