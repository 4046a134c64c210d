package domain

import "errors"

var (
	// ErrRoomNotFound is returned both when a room does not exist and when
	// the requester is not a member. The two cases are deliberately
	// indistinguishable so the API does not leak room existence.
	ErrRoomNotFound = errors.New("chat room not found")
	ErrNoMembers    = errors.New("at least one user must be specified")

	ErrEmptyContent   = errors.New("message content cannot be empty")
	ErrInvalidContent = errors.New("invalid message content")
	ErrRoomExists     = errors.New("chat room already exists")
)
