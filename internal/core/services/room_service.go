package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"

	"github.com/google/uuid"
)

type roomService struct {
	roomRepo ports.RoomRepository
	locker   ports.RoomLocker
	policy   domain.DedupPolicy
}

func NewRoomService(roomRepo ports.RoomRepository, locker ports.RoomLocker, policy domain.DedupPolicy) ports.RoomService {
	if policy == "" {
		policy = domain.DedupLoose
	}
	return &roomService{
		roomRepo: roomRepo,
		locker:   locker,
		policy:   policy,
	}
}

func (s *roomService) CreateOrFindRoom(ctx context.Context, requester domain.UserID, otherMembers []domain.UserID) (*domain.ChatRoom, bool, error) {
	others := dedupUsers(otherMembers, requester)
	if len(others) == 0 {
		return nil, false, domain.ErrNoMembers
	}

	members := append([]domain.UserID{requester}, others...)
	key := memberSetKey(members)

	var (
		room    *domain.ChatRoom
		created bool
	)
	err := s.locker.WithLock(ctx, key, func() error {
		existing, err := s.findExisting(ctx, requester, others, members)
		if err != nil {
			return err
		}
		if existing != nil {
			room = existing
			return nil
		}

		room = &domain.ChatRoom{
			ID:        domain.RoomID(uuid.New().String()),
			Members:   members,
			CreatedAt: time.Now(),
		}
		if err := s.roomRepo.Create(ctx, room); err != nil {
			return fmt.Errorf("failed to create chat room: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return room, created, nil
}

// findExisting scans the requester's rooms oldest-first and returns the
// first match under the configured dedup policy, or nil.
func (s *roomService) findExisting(ctx context.Context, requester domain.UserID, others, full []domain.UserID) (*domain.ChatRoom, error) {
	rooms, err := s.roomRepo.ListByMember(ctx, requester)
	if err != nil {
		return nil, err
	}

	// ListByMember is newest-first for display; dedup follows creation order.
	for i := len(rooms) - 1; i >= 0; i-- {
		room := rooms[i]
		switch s.policy {
		case domain.DedupExact:
			if sameMemberSet(room.Members, full) {
				return room, nil
			}
		default:
			// Loose policy: any shared member besides the requester counts
			// as a match, even when the full sets differ.
			if sharesAnyMember(room, others) {
				return room, nil
			}
		}
	}
	return nil, nil
}

func (s *roomService) GetRoom(ctx context.Context, roomID domain.RoomID) (*domain.ChatRoom, error) {
	return s.roomRepo.GetByID(ctx, roomID)
}

func (s *roomService) ListRooms(ctx context.Context, user domain.UserID) ([]*domain.ChatRoom, error) {
	return s.roomRepo.ListByMember(ctx, user)
}

func (s *roomService) IsMember(ctx context.Context, roomID domain.RoomID, user domain.UserID) (bool, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	return room.HasMember(user), nil
}

func sharesAnyMember(room *domain.ChatRoom, users []domain.UserID) bool {
	for _, u := range users {
		if room.HasMember(u) {
			return true
		}
	}
	return false
}

func sameMemberSet(a, b []domain.UserID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[domain.UserID]bool, len(a))
	for _, u := range a {
		set[u] = true
	}
	for _, u := range b {
		if !set[u] {
			return false
		}
	}
	return true
}

// dedupUsers removes duplicates and the requester from the requested member
// list, preserving order.
func dedupUsers(users []domain.UserID, requester domain.UserID) []domain.UserID {
	seen := map[domain.UserID]bool{requester: true}
	var out []domain.UserID
	for _, u := range users {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// memberSetKey builds a stable lock key for a member set.
func memberSetKey(members []domain.UserID) string {
	sorted := make([]string, 0, len(members))
	for _, m := range members {
		sorted = append(sorted, string(m))
	}
	sort.Strings(sorted)
	return "room:" + strings.Join(sorted, ",")
}
