package session

import (
	"context"
	"time"
)

// Store defines the interface for session persistence. Implementations
// handle storage-specific operations such as Redis commands or in-memory
// bookkeeping.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by its client-held token.
	// Returns ErrNotFound if the session doesn't exist.
	// Returns ErrExpired if the session has expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Update saves changes to an existing session. When the token changed
	// (rotation on login), oldToken carries the previous value so the stale
	// key can be removed; it is empty otherwise.
	Update(ctx context.Context, s *Session, oldToken string) error

	// Delete removes a session by its token.
	Delete(ctx context.Context, token string) error

	// DeleteByUserID removes all sessions bound to a user.
	// Useful for "logout from all devices".
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired prunes sessions that expired before the given time.
	// Stores with native TTL support may implement this as a no-op.
	DeleteExpired(ctx context.Context, before time.Time) error
}
