package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// defaultTTL keeps anonymous browse-and-cart sessions alive for a week.
const defaultTTL = 7 * 24 * time.Hour

// Manager handles session lifecycle against a Store. It is transport-free:
// reading and writing the client-held token (cookie) is the hosting layer's
// job; the manager only deals with the key-value session store.
type Manager struct {
	store Store
	ttl   time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, ttl: defaultTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying session store.
func (m *Manager) Store() Store { return m.store }

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Load fetches the session for a client token. Returns nil, nil when the
// token is empty or names no live session: an absent session is an expected
// state, not an error.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	s, err := m.store.Get(ctx, token)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create makes and persists a fresh anonymous session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	s := New(id.NewULID(), token, time.Now().Add(m.ttl))
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	s.ClearNew()
	s.ClearDirty()
	return s, nil
}

// Save persists any unsaved changes and refreshes the activity timestamp.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil || !s.IsDirty() {
		return nil
	}
	s.LastActiveAt = time.Now()
	if err := m.store.Update(ctx, s, ""); err != nil {
		return err
	}
	s.ClearDirty()
	return nil
}

// RotateToken replaces the client-held token, invalidating the previous one.
// Called on authentication to defeat session fixation.
func (m *Manager) RotateToken(ctx context.Context, s *Session) error {
	newToken, err := generateToken()
	if err != nil {
		return err
	}
	oldToken := s.Token
	s.Token = newToken
	s.MarkDirty()
	if err := m.store.Update(ctx, s, oldToken); err != nil {
		s.Token = oldToken // roll back so the caller's session stays loadable
		return err
	}
	s.ClearDirty()
	return nil
}

// Destroy removes the session from the store.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return m.store.Delete(ctx, s.Token)
}

// generateToken creates a cryptographically secure random token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
