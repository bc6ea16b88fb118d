package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/pawfront/internal/storage"
)

type fakeRestorer struct {
	principal *Principal
	rotated   string
	err       error
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeRestorer) Restore(ctx context.Context, refresh string) (*Principal, string, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if f.err != nil {
		return nil, "", f.err
	}
	rotated := f.rotated
	if rotated == "" {
		rotated = refresh
	}
	return f.principal, rotated, nil
}

func waitForStatus(t *testing.T, m *Manager, sessionID string, want Status) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snapshot := m.SnapshotFor(sessionID)
		if snapshot.Status == want {
			return snapshot
		}
		select {
		case <-deadline:
			t.Fatalf("session %s never reached %s (currently %s)", sessionID, want, snapshot.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManagerSignInAndOut(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	m := NewManager(store, &fakeRestorer{}, ManagerConfig{})

	principal := NewPrincipal("u1", "alice@example.com", "Alice", "", staticCredentials{token: "tok"})
	sessionID, err := m.SignIn(ctx, principal, "refresh-1")
	require.NoError(t, err)

	snapshot := m.SnapshotFor(sessionID)
	assert.Equal(t, StatusAuthenticated, snapshot.Status)
	assert.Equal(t, "alice@example.com", snapshot.Principal.Email)

	// Persisted record and user tracking
	record, err := store.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", record.RefreshCredential)
	user, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.Enabled)

	m.SignOut(ctx, sessionID)
	assert.Equal(t, StatusAnonymous, m.SnapshotFor(sessionID).Status)
	_, err = store.GetSession(ctx, sessionID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManagerUnknownSessionIsAnonymous(t *testing.T) {
	m := NewManager(storage.NewMemoryStorage(), &fakeRestorer{}, ManagerConfig{})
	assert.Equal(t, StatusAnonymous, m.SnapshotFor("").Status)
	assert.Equal(t, StatusAnonymous, m.SnapshotFor("unknown").Status)
}

func TestManagerRestorePendingThenAuthenticated(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	require.NoError(t, store.UpsertSession(ctx, &storage.SessionRecord{
		SessionID:         "s1",
		UserID:            "u1",
		Email:             "alice@example.com",
		RefreshCredential: "refresh-1",
		ExpiresAt:         time.Now().Add(time.Hour),
	}))

	restorer := &fakeRestorer{
		principal: NewPrincipal("u1", "alice@example.com", "Alice", "", staticCredentials{token: "tok"}),
		rotated:   "refresh-2",
		release:   make(chan struct{}),
	}
	m := NewManager(store, restorer, ManagerConfig{})
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	// Pending while the identity backend has not answered
	assert.Equal(t, StatusPending, m.SnapshotFor("s1").Status)

	close(restorer.release)
	snapshot := waitForStatus(t, m, "s1", StatusAuthenticated)
	assert.Equal(t, "alice@example.com", snapshot.Principal.Email)

	// Rotated credential persisted
	assert.Eventually(t, func() bool {
		record, err := store.GetSession(ctx, "s1")
		return err == nil && record.RefreshCredential == "refresh-2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerRestoreFailureSettlesAnonymous(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	require.NoError(t, store.UpsertSession(ctx, &storage.SessionRecord{
		SessionID:         "s1",
		UserID:            "u1",
		RefreshCredential: "revoked",
		ExpiresAt:         time.Now().Add(time.Hour),
	}))

	m := NewManager(store, &fakeRestorer{err: errors.New("credential revoked")}, ManagerConfig{})
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitForStatus(t, m, "s1", StatusAnonymous)

	assert.Eventually(t, func() bool {
		_, err := store.GetSession(ctx, "s1")
		return errors.Is(err, storage.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerRestoreDisabledUser(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	require.NoError(t, store.UpsertUser(ctx, &storage.UserRecord{ID: "u1", Enabled: false}))
	require.NoError(t, store.UpsertSession(ctx, &storage.SessionRecord{
		SessionID:         "s1",
		UserID:            "u1",
		RefreshCredential: "refresh-1",
		ExpiresAt:         time.Now().Add(time.Hour),
	}))

	restorer := &fakeRestorer{
		principal: NewPrincipal("u1", "alice@example.com", "Alice", "", staticCredentials{token: "tok"}),
	}
	m := NewManager(store, restorer, ManagerConfig{})
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	waitForStatus(t, m, "s1", StatusAnonymous)
}

func TestManagerStaleRestoreDiscarded(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	require.NoError(t, store.UpsertSession(ctx, &storage.SessionRecord{
		SessionID:         "s1",
		UserID:            "u1",
		RefreshCredential: "refresh-1",
		ExpiresAt:         time.Now().Add(time.Hour),
	}))

	restorer := &fakeRestorer{
		principal: NewPrincipal("u1", "alice@example.com", "Alice", "", staticCredentials{token: "tok"}),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	m := NewManager(store, restorer, ManagerConfig{})
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	<-restorer.started
	// Sign out while the restore is still in flight
	m.SignOut(ctx, "s1")
	close(restorer.release)

	// The stale completion must not resurrect the session
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusAnonymous, m.SnapshotFor("s1").Status)
	_, ok := m.Get("s1")
	assert.False(t, ok)
}

func TestManagerRevokeUser(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	m := NewManager(store, &fakeRestorer{}, ManagerConfig{})

	principal := NewPrincipal("u1", "alice@example.com", "Alice", "", staticCredentials{token: "tok"})
	s1, err := m.SignIn(ctx, principal, "r1")
	require.NoError(t, err)
	s2, err := m.SignIn(ctx, principal, "r2")
	require.NoError(t, err)

	other := NewPrincipal("u2", "bob@example.com", "Bob", "", staticCredentials{token: "tok"})
	s3, err := m.SignIn(ctx, other, "r3")
	require.NoError(t, err)

	revoked := m.RevokeUser(ctx, "u1")
	assert.Equal(t, 2, revoked)
	assert.Equal(t, StatusAnonymous, m.SnapshotFor(s1).Status)
	assert.Equal(t, StatusAnonymous, m.SnapshotFor(s2).Status)
	assert.Equal(t, StatusAuthenticated, m.SnapshotFor(s3).Status)
}
