package session

import (
	"time"
)

// Session is server-side state keyed by an opaque token held by the client.
// It carries the optional authenticated user binding and arbitrary values
// such as the anti-forgery token, flash messages, and per-vendor carts.
type Session struct {
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time

	UserID *string        // nil = anonymous session
	Values map[string]any // arbitrary session data
	ID     string         // stable identifier, used as the store key for deletes
	Token  string         // client-held token, rotated on authentication

	dirty bool
	isNew bool
}

// New creates a new session with the given ID and token.
func New(id, token string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Token:        token,
		Values:       make(map[string]any),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		isNew:        true,
		dirty:        true,
	}
}

// IsAuthenticated reports whether the session has an associated user.
// A session with no stored user id is always unauthenticated, regardless
// of any cached state.
func (s *Session) IsAuthenticated() bool {
	return s.UserID != nil && *s.UserID != ""
}

// SetUser binds a user to the session.
func (s *Session) SetUser(userID string) {
	s.UserID = &userID
	s.dirty = true
}

// ClearUser removes the user binding, returning the session to anonymous.
func (s *Session) ClearUser() {
	if s.UserID != nil {
		s.UserID = nil
		s.dirty = true
	}
}

// SetValue stores a value and marks the session for saving.
func (s *Session) SetValue(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
	s.dirty = true
}

// GetValue retrieves a value from the session.
func (s *Session) GetValue(key string) (any, bool) {
	if s.Values == nil {
		return nil, false
	}
	val, ok := s.Values[key]
	return val, ok
}

// DeleteValue removes a value, marking the session dirty only if the key
// existed.
func (s *Session) DeleteValue(key string) {
	if s.Values == nil {
		return
	}
	if _, exists := s.Values[key]; exists {
		delete(s.Values, key)
		s.dirty = true
	}
}

// IsDirty reports whether the session has unsaved changes.
func (s *Session) IsDirty() bool { return s.dirty }

// ClearDirty marks the session as saved. Called by the manager after
// persisting.
func (s *Session) ClearDirty() { s.dirty = false }

// MarkDirty marks the session as needing a save.
func (s *Session) MarkDirty() { s.dirty = true }

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool { return s.isNew }

// ClearNew marks the session as persisted for the first time.
func (s *Session) ClearNew() { s.isNew = false }

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Value retrieves a session value with type safety. Returns ErrNotFound if
// the key is absent and ErrTypeMismatch if the stored value has a different
// type.
func Value[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotFound
	}
	val, ok := s.GetValue(key)
	if !ok {
		return zero, ErrNotFound
	}
	typed, ok := val.(T)
	if !ok {
		return zero, ErrTypeMismatch
	}
	return typed, nil
}
