package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store for development and tests.
// Sessions are stored by token; concurrent access follows last-write-wins
// semantics, matching the store contract for shared session mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{} // userID -> set of tokens
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Create persists a new session.
func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(s.Token, s)
	return nil
}

// Get retrieves a session by token.
func (m *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return cloneSession(s), nil
}

// Update saves changes to an existing session, moving it under a new token
// when the token was rotated.
func (m *MemoryStore) Update(_ context.Context, s *Session, oldToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldToken != "" && oldToken != s.Token {
		m.remove(oldToken)
	}
	m.put(s.Token, s)
	return nil
}

// Delete removes a session by token.
func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(token)
	return nil
}

// DeleteByUserID removes all sessions bound to a user.
func (m *MemoryStore) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token := range m.byUser[userID] {
		delete(m.sessions, token)
	}
	delete(m.byUser, userID)
	return nil
}

// DeleteExpired prunes sessions that expired before the given time.
func (m *MemoryStore) DeleteExpired(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			m.remove(token)
		}
	}
	return nil
}

// put stores a copy under the token and maintains the user index.
// Caller must hold the lock.
func (m *MemoryStore) put(token string, s *Session) {
	m.sessions[token] = cloneSession(s)
	if s.UserID != nil {
		if m.byUser[*s.UserID] == nil {
			m.byUser[*s.UserID] = make(map[string]struct{})
		}
		m.byUser[*s.UserID][token] = struct{}{}
	}
}

// remove deletes the token and its user index entry.
// Caller must hold the lock.
func (m *MemoryStore) remove(token string) {
	s, ok := m.sessions[token]
	if !ok {
		return
	}
	delete(m.sessions, token)
	if s.UserID != nil {
		delete(m.byUser[*s.UserID], token)
	}
}

// cloneSession copies a session so callers cannot mutate stored state
// without going through Update.
func cloneSession(s *Session) *Session {
	clone := *s
	clone.Values = make(map[string]any, len(s.Values))
	maps.Copy(clone.Values, s.Values)
	if s.UserID != nil {
		id := *s.UserID
		clone.UserID = &id
	}
	return &clone
}
