package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pawmart/pawfront/internal/crypto"
	"github.com/pawmart/pawfront/internal/log"
	"github.com/pawmart/pawfront/internal/storage"
)

const (
	defaultTimeout          = 30 * 24 * time.Hour
	defaultCleanupInterval  = time.Hour
	defaultRotationInterval = 45 * time.Minute
)

// Restorer rebuilds a principal from a persisted refresh credential.
// It returns the principal and the refresh credential to persist going
// forward (identity backends may rotate it).
type Restorer interface {
	Restore(ctx context.Context, refreshCredential string) (*Principal, string, error)
}

// Session is one browser session and its observer
type Session struct {
	ID        string
	Observer  *Observer
	ExpiresAt time.Time
}

// ManagerConfig tunes session lifetime and background maintenance
type ManagerConfig struct {
	Timeout          time.Duration
	CleanupInterval  time.Duration
	RotationInterval time.Duration
}

func (c *ManagerConfig) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.RotationInterval == 0 {
		c.RotationInterval = defaultRotationInterval
	}
}

// Manager owns all live sessions. At startup it restores persisted sessions
// asynchronously: each restored session is Pending until the identity backend
// confirms or rejects its refresh credential.
type Manager struct {
	store    storage.Storage
	restorer Restorer
	cfg      ManagerConfig

	mu       sync.Mutex
	sessions map[string]*Session

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewManager creates a session manager
func NewManager(store storage.Storage, restorer Restorer, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	return &Manager{
		store:    store,
		restorer: restorer,
		cfg:      cfg,
		sessions: make(map[string]*Session),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start restores persisted sessions and launches background maintenance
func (m *Manager) Start(ctx context.Context) error {
	records, err := m.store.ListSessions(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	restoring := 0
	for _, record := range records {
		if record.Expired(now) {
			continue
		}
		m.beginRestore(ctx, record)
		restoring++
	}

	log.LogInfoWithFields("session", "Session restore started", map[string]any{
		"persisted": len(records),
		"restoring": restoring,
	})

	go m.run(ctx)
	return nil
}

// Stop halts background maintenance and waits for it to finish
func (m *Manager) Stop() {
	close(m.stopChan)
	<-m.doneChan
}

// SnapshotFor returns the current snapshot for a browser session ID.
// Unknown or empty IDs are Anonymous: no session means no identity.
func (m *Manager) SnapshotFor(sessionID string) Snapshot {
	if sessionID == "" {
		return Anonymous
	}

	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()

	if !ok {
		return Anonymous
	}
	return sess.Observer.Snapshot()
}

// Get returns the live session for an ID
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// SignIn creates a new authenticated session and persists it
func (m *Manager) SignIn(ctx context.Context, principal *Principal, refreshCredential string) (string, error) {
	sessionID, err := crypto.GenerateSessionID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &storage.SessionRecord{
		SessionID:         sessionID,
		UserID:            principal.ID,
		Email:             principal.Email,
		DisplayName:       principal.DisplayName,
		AvatarURL:         principal.AvatarURL,
		RefreshCredential: refreshCredential,
		CreatedAt:         now,
		LastSeen:          now,
		ExpiresAt:         now.Add(m.cfg.Timeout),
	}
	if err := m.store.UpsertSession(ctx, record); err != nil {
		return "", err
	}

	if err := storage.TrackSignIn(ctx, m.store, principal.ID, principal.Email, principal.DisplayName, now); err != nil {
		log.LogWarnWithFields("session", "Failed to track sign-in", map[string]any{
			"user":  principal.ID,
			"error": err.Error(),
		})
	}

	sess := &Session{
		ID:        sessionID,
		Observer:  NewObserver(),
		ExpiresAt: record.ExpiresAt,
	}
	sess.Observer.Publish(Snapshot{Status: StatusAuthenticated, Principal: principal})

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	log.LogInfoWithFields("session", "Session created", map[string]any{
		"user": principal.Email,
	})
	return sessionID, nil
}

// SignOut removes a session. The observer settles to Anonymous before it is
// closed, so in-flight subscribers see the sign-out.
func (m *Manager) SignOut(ctx context.Context, sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		sess.Observer.Publish(Anonymous)
		sess.Observer.Close()
	}

	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		log.LogWarnWithFields("session", "Failed to delete persisted session", map[string]any{
			"error": err.Error(),
		})
	}
}

// RevokeUser signs out every session belonging to a user
func (m *Manager) RevokeUser(ctx context.Context, userID string) int {
	m.mu.Lock()
	var ids []string
	for id, sess := range m.sessions {
		snapshot := sess.Observer.Snapshot()
		if snapshot.Principal != nil && snapshot.Principal.ID == userID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.SignOut(ctx, id)
	}

	if _, err := m.store.DeleteUserSessions(ctx, userID); err != nil {
		log.LogWarnWithFields("session", "Failed to delete persisted user sessions", map[string]any{
			"user":  userID,
			"error": err.Error(),
		})
	}
	return len(ids)
}

// ActiveSessions lists live sessions for the admin dashboard
func (m *Manager) ActiveSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// beginRestore registers a Pending session and resolves it in the background
func (m *Manager) beginRestore(ctx context.Context, record *storage.SessionRecord) {
	sess := &Session{
		ID:        record.SessionID,
		Observer:  NewObserver(),
		ExpiresAt: record.ExpiresAt,
	}

	m.mu.Lock()
	m.sessions[record.SessionID] = sess
	m.mu.Unlock()

	go m.resolveRestore(ctx, sess, record)
}

func (m *Manager) resolveRestore(ctx context.Context, sess *Session, record *storage.SessionRecord) {
	principal, rotated, err := m.restorer.Restore(ctx, record.RefreshCredential)

	// The session may have been signed out while the restore was in
	// flight; its observer is closed and this completion is stale
	m.mu.Lock()
	current, ok := m.sessions[sess.ID]
	m.mu.Unlock()
	if !ok || current != sess {
		return
	}

	if err == nil {
		err = m.checkUserEnabled(ctx, principal.ID)
	}

	if err != nil {
		log.LogInfoWithFields("session", "Session restore failed", map[string]any{
			"error": err.Error(),
		})
		sess.Observer.Publish(Anonymous)
		m.mu.Lock()
		delete(m.sessions, sess.ID)
		m.mu.Unlock()
		if err := m.store.DeleteSession(ctx, sess.ID); err != nil {
			log.LogWarnWithFields("session", "Failed to delete unrestorable session", map[string]any{
				"error": err.Error(),
			})
		}
		return
	}

	if rotated != record.RefreshCredential {
		record.RefreshCredential = rotated
		record.LastSeen = time.Now()
		if err := m.store.UpsertSession(ctx, record); err != nil {
			log.LogWarnWithFields("session", "Failed to persist rotated credential", map[string]any{
				"error": err.Error(),
			})
		}
	}

	sess.Observer.Publish(Snapshot{Status: StatusAuthenticated, Principal: principal})
	log.LogDebugWithFields("session", "Session restored", map[string]any{
		"user": principal.Email,
	})
}

func (m *Manager) checkUserEnabled(ctx context.Context, userID string) error {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.Enabled {
		return errors.New("user is disabled")
	}
	return nil
}

// run drives periodic cleanup and credential rotation
func (m *Manager) run(ctx context.Context) {
	defer close(m.doneChan)

	cleanupTicker := time.NewTicker(m.cfg.CleanupInterval)
	defer cleanupTicker.Stop()
	rotationTicker := time.NewTicker(m.cfg.RotationInterval)
	defer rotationTicker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			m.cleanup(ctx)
		case <-rotationTicker.C:
			m.rotate(ctx)
		}
	}
}

func (m *Manager) cleanup(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Observer.Publish(Anonymous)
		sess.Observer.Close()
	}

	cleaned, err := m.store.CleanupExpiredSessions(ctx)
	if err != nil {
		log.LogErrorWithFields("session", "Session cleanup failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if cleaned > 0 || len(expired) > 0 {
		log.LogInfoWithFields("session", "Cleaned up expired sessions", map[string]any{
			"persisted": cleaned,
			"live":      len(expired),
		})
	}
}

// rotate refreshes credentials for live authenticated sessions so bearer
// minting stays warm and revoked users fall out between cleanups
func (m *Manager) rotate(ctx context.Context) {
	for _, sess := range m.ActiveSessions() {
		snapshot := sess.Observer.Snapshot()
		if snapshot.Status != StatusAuthenticated {
			continue
		}
		if _, err := snapshot.Principal.Credential(ctx, true); err != nil {
			log.LogWarnWithFields("session", "Credential rotation failed", map[string]any{
				"user":  snapshot.Principal.Email,
				"error": err.Error(),
			})
		}
	}
}
