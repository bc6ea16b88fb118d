// Package storage persists browser sessions and user records.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// SessionRecord is a persisted browser session. RefreshCredential lets the
// session be restored after a process restart; implementations encrypt it
// at rest.
type SessionRecord struct {
	SessionID         string
	UserID            string
	Email             string
	DisplayName       string
	AvatarURL         string
	RefreshCredential string
	CreatedAt         time.Time
	LastSeen          time.Time
	ExpiresAt         time.Time
}

// Expired reports whether the record is past its expiry
func (r *SessionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// UserRecord tracks a user who has signed in through the storefront
type UserRecord struct {
	ID          string
	Email       string
	DisplayName string
	Enabled     bool
	IsAdmin     bool
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Storage persists sessions and users
type Storage interface {
	UpsertSession(ctx context.Context, record *SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	ListSessions(ctx context.Context) ([]*SessionRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteUserSessions(ctx context.Context, userID string) (int, error)
	CleanupExpiredSessions(ctx context.Context) (int, error)

	UpsertUser(ctx context.Context, user *UserRecord) error
	GetUser(ctx context.Context, id string) (*UserRecord, error)
	ListUsers(ctx context.Context) ([]*UserRecord, error)
	SetUserEnabled(ctx context.Context, id string, enabled bool) error

	Close() error
}

// TrackSignIn upserts the user record for a fresh sign-in, preserving
// FirstSeen, Enabled, and IsAdmin for returning users.
func TrackSignIn(ctx context.Context, s Storage, id, email, displayName string, now time.Time) error {
	existing, err := s.GetUser(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	record := &UserRecord{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		Enabled:     true,
		FirstSeen:   now,
		LastSeen:    now,
	}
	if existing != nil {
		record.Enabled = existing.Enabled
		record.IsAdmin = existing.IsAdmin
		record.FirstSeen = existing.FirstSeen
	}

	return s.UpsertUser(ctx, record)
}
