// Package auth resolves request identity and enforces account security:
// credential verification, per-request lazy user loading, and the
// brute-force lockout evaluated against the persistent attempt log.
package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords;
	// callers must not reveal which one it was.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountLocked is returned once the failure threshold is reached,
	// even when the submitted password is correct.
	ErrAccountLocked = errors.New("auth: account locked")
	// ErrAccountDisabled is returned for administratively disabled accounts.
	ErrAccountDisabled = errors.New("auth: account disabled")
	// ErrNoSession is returned when an operation needs a session and the
	// request has none attached.
	ErrNoSession = errors.New("auth: no session attached to request")
)

// Store is the slice of the repository the identity provider needs.
type Store interface {
	FindUser(ctx context.Context, userID string) (repository.User, error)
	FindUserByEmail(ctx context.Context, email string) (repository.User, error)
	RecordLoginAttempt(ctx context.Context, userID *string, email, ip string, success bool) error
	CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int, error)
	LockUser(ctx context.Context, userID string) error
	UnlockUser(ctx context.Context, userID string) error
}

// Defaults for the brute-force lockout: five failures inside a sliding
// one-hour window lock the account.
const (
	defaultMaxFailures   = 5
	defaultLockoutWindow = time.Hour
)

// Identity is the explicit authentication provider: it resolves the
// current user from the session at most once per request and acts as the
// router's capability guard.
type Identity struct {
	store    Store
	sessions *session.Manager
	logger   *slog.Logger

	maxFailures   int
	lockoutWindow time.Duration
}

// Option configures the identity provider.
type Option func(*Identity)

// WithLogger sets the security event logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Identity) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMaxFailures overrides the failure threshold that triggers a lockout.
func WithMaxFailures(n int) Option {
	return func(i *Identity) {
		if n > 0 {
			i.maxFailures = n
		}
	}
}

// WithLockoutWindow overrides the sliding window failures are counted in.
func WithLockoutWindow(window time.Duration) Option {
	return func(i *Identity) {
		if window > 0 {
			i.lockoutWindow = window
		}
	}
}

// New creates the identity provider.
func New(store Store, sessions *session.Manager, opts ...Option) *Identity {
	i := &Identity{
		store:         store,
		sessions:      sessions,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxFailures:   defaultMaxFailures,
		lockoutWindow: defaultLockoutWindow,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}
