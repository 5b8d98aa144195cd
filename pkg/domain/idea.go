package domain

import "time"

// Idea is the project idea a conversation refines. Locked is set by the
// pipeline launcher when a downstream run starts; once locked the
// conversation is read-only and LockURL points at the run.
type Idea struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	Locked      bool
	LockURL     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
