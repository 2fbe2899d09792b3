package core

import (
	"errors"
	"time"
)

// ErrConflict reports a uniqueness violation in a store.
var ErrConflict = errors.New("already exists")

// User is an account able to sign in.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a bearer token issued at sign-in.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SyncStatus tracks the export state of a stored expense.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncDone    SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// PendingExport is the minimal record needed to enqueue an export.
type PendingExport struct {
	ID        int64
	UserID    string
	Version   int64
	CreatedAt time.Time
}
