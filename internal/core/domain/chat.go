package domain

import "time"

type RoomID string
type MessageID string
type SessionID string

// ChatRoom is a persistent set of participants sharing a message history.
// Membership is fixed at creation time; rooms are never deleted.
type ChatRoom struct {
	ID        RoomID    `json:"id"`
	Members   []UserID  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether user belongs to the room.
func (r *ChatRoom) HasMember(user UserID) bool {
	for _, m := range r.Members {
		if m == user {
			return true
		}
	}
	return false
}

// Message is an immutable entry in a room's history. The wire name of the
// room reference is "chatroom" to match the public API contract.
type Message struct {
	ID        MessageID `json:"id"`
	RoomID    RoomID    `json:"chatroom"`
	Sender    UserID    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupPolicy selects how CreateOrFindRoom matches an existing room against
// a requested member set.
type DedupPolicy string

const (
	// DedupLoose matches any existing room of the requester that shares at
	// least one of the requested members.
	DedupLoose DedupPolicy = "loose"
	// DedupExact requires the full member set to be identical.
	DedupExact DedupPolicy = "exact"
)
