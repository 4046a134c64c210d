package domain

import "time"

type UserID string

// User is the identity issued by the external Identity Provider. The chat
// subsystem only ever references user ids; it never mutates users.
type User struct {
	ID        UserID
	Username  string
	Email     string
	CreatedAt time.Time
}
