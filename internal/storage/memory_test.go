package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRecord(id, userID string, expiresAt time.Time) *SessionRecord {
	return &SessionRecord{
		SessionID:         id,
		UserID:            userID,
		Email:             userID + "@example.com",
		RefreshCredential: "refresh-" + id,
		CreatedAt:         time.Now(),
		LastSeen:          time.Now(),
		ExpiresAt:         expiresAt,
	}
}

func TestMemoryStorageSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetSession(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert and get", func(t *testing.T) {
		record := sessionRecord("s1", "u1", time.Now().Add(time.Hour))
		require.NoError(t, store.UpsertSession(ctx, record))

		got, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "refresh-s1", got.RefreshCredential)

		// Mutating the returned record must not affect the store
		got.RefreshCredential = "mutated"
		again, err := store.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "refresh-s1", again.RefreshCredential)
	})

	t.Run("delete by user", func(t *testing.T) {
		require.NoError(t, store.UpsertSession(ctx, sessionRecord("s2", "u1", time.Now().Add(time.Hour))))
		require.NoError(t, store.UpsertSession(ctx, sessionRecord("s3", "u2", time.Now().Add(time.Hour))))

		deleted, err := store.DeleteUserSessions(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, deleted) // s1 and s2

		_, err = store.GetSession(ctx, "s3")
		assert.NoError(t, err)
	})

	t.Run("cleanup expired", func(t *testing.T) {
		require.NoError(t, store.UpsertSession(ctx, sessionRecord("old", "u3", time.Now().Add(-time.Minute))))

		cleaned, err := store.CleanupExpiredSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, cleaned)

		_, err = store.GetSession(ctx, "old")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStorageUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UpsertUser(ctx, &UserRecord{
		ID: "u1", Email: "a@example.com", Enabled: true,
	}))

	t.Run("set enabled", func(t *testing.T) {
		require.NoError(t, store.SetUserEnabled(ctx, "u1", false))
		user, err := store.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, user.Enabled)
	})

	t.Run("set enabled on missing user", func(t *testing.T) {
		assert.ErrorIs(t, store.SetUserEnabled(ctx, "ghost", true), ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		users, err := store.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}

func TestTrackSignIn(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	now := time.Now()

	require.NoError(t, TrackSignIn(ctx, store, "u1", "a@example.com", "Alice", now))

	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.Enabled)
	assert.Equal(t, now, user.FirstSeen)

	// A disabled returning user stays disabled and keeps FirstSeen
	require.NoError(t, store.SetUserEnabled(ctx, "u1", false))
	later := now.Add(time.Hour)
	require.NoError(t, TrackSignIn(ctx, store, "u1", "a@example.com", "Alice", later))

	user, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.Enabled)
	assert.Equal(t, now, user.FirstSeen)
	assert.Equal(t, later, user.LastSeen)
}
