package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps everything in process memory. Suitable for
// development and tests; sessions do not survive a restart.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	users    map[string]*UserRecord
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*SessionRecord),
		users:    make(map[string]*UserRecord),
	}
}

func (m *MemoryStorage) UpsertSession(_ context.Context, record *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.sessions[record.SessionID] = &clone
	return nil
}

func (m *MemoryStorage) GetSession(_ context.Context, sessionID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *MemoryStorage) ListSessions(_ context.Context) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*SessionRecord, 0, len(m.sessions))
	for _, record := range m.sessions {
		clone := *record
		records = append(records, &clone)
	}
	return records, nil
}

func (m *MemoryStorage) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStorage) DeleteUserSessions(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, record := range m.sessions {
		if record.UserID == userID {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStorage) CleanupExpiredSessions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	cleaned := 0
	for id, record := range m.sessions {
		if record.Expired(now) {
			delete(m.sessions, id)
			cleaned++
		}
	}
	return cleaned, nil
}

func (m *MemoryStorage) UpsertUser(_ context.Context, user *UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MemoryStorage) GetUser(_ context.Context, id string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *MemoryStorage) ListUsers(_ context.Context) ([]*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]*UserRecord, 0, len(m.users))
	for _, user := range m.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (m *MemoryStorage) SetUserEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Enabled = enabled
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
