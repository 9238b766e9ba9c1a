package auth

import (
	"errors"
	"log/slog"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// csrfTokenKey mirrors the anti-forgery middleware's session key. Login
// discards the stored token so a fresh one is issued alongside the
// rotated session token.
const csrfTokenKey = "_token"

// Attempt verifies credentials and, on success, binds the user to the
// request's session. Every try is recorded in the persistent attempt log;
// once maxFailures failed tries accumulate inside the lockout window the
// account is locked and further attempts are rejected before the password
// is even checked. The lock expires with the window: once the recent
// failure count drops back below the threshold the account unlocks on the
// next attempt.
func (i *Identity) Attempt(c *dispatch.Context, email, password string) (repository.User, error) {
	ctx := c.Context()
	ip := c.Request().RemoteIP()

	user, err := i.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Record under the submitted email so probing shows up in the log.
			i.recordAttempt(c, nil, email, false)
			return repository.User{}, ErrInvalidCredentials
		}
		return repository.User{}, err
	}

	failures, err := i.store.CountRecentFailures(ctx, user.ID, i.lockoutWindow)
	if err != nil {
		return repository.User{}, err
	}

	if user.Status == repository.UserStatusLocked {
		if failures >= i.maxFailures {
			i.recordAttempt(c, &user.ID, email, false)
			return repository.User{}, ErrAccountLocked
		}
		// The failures that triggered the lock have aged out of the window,
		// so the lock has served its time.
		if err := i.store.UnlockUser(ctx, user.ID); err != nil {
			return repository.User{}, err
		}
		user.Status = repository.UserStatusActive
		i.logger.InfoContext(ctx, "account lock expired",
			slog.String("user_id", user.ID),
			slog.String("ip", ip),
		)
	} else if failures >= i.maxFailures {
		// Threshold already reached: lock and reject without verifying the
		// password, so a correct guess on the attempt after the limit still
		// fails.
		if err := i.store.LockUser(ctx, user.ID); err != nil {
			return repository.User{}, err
		}
		i.recordAttempt(c, &user.ID, email, false)
		i.logger.WarnContext(ctx, "account locked",
			slog.String("user_id", user.ID),
			slog.String("ip", ip),
			slog.Int("recent_failures", failures),
		)
		return repository.User{}, ErrAccountLocked
	}

	if !VerifyPassword(user.PasswordHash, password) {
		i.recordAttempt(c, &user.ID, email, false)
		return repository.User{}, ErrInvalidCredentials
	}

	if user.Status != repository.UserStatusActive {
		i.recordAttempt(c, &user.ID, email, false)
		return repository.User{}, ErrAccountDisabled
	}

	i.recordAttempt(c, &user.ID, email, true)
	if err := i.Login(c, user); err != nil {
		return repository.User{}, err
	}
	return user, nil
}

// Login binds an already-verified user to the session, rotating the
// session token against fixation and discarding the anti-forgery token so
// the next request issues a fresh one.
func (i *Identity) Login(c *dispatch.Context, user repository.User) error {
	sess := c.Session()
	if sess == nil {
		return ErrNoSession
	}

	sess.SetUser(user.ID)
	sess.DeleteValue(csrfTokenKey)
	if err := i.sessions.RotateToken(c.Context(), sess); err != nil {
		return err
	}

	// Seed the per-request cache so handlers on this same request see the
	// fresh identity without another lookup.
	c.Set(identityKey{}, resolved{user: &user})

	i.logger.InfoContext(c.Context(), "user logged in",
		slog.String("user_id", user.ID),
		slog.String("ip", c.Request().RemoteIP()),
	)
	return nil
}

// Logout destroys the server-side session and attaches a fresh anonymous
// one, which also drops the cart and any pending flashes.
func (i *Identity) Logout(c *dispatch.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}
	if err := i.sessions.Destroy(c.Context(), sess); err != nil {
		return err
	}
	fresh, err := i.sessions.Create(c.Context())
	if err != nil {
		return err
	}
	c.SetSession(fresh)
	c.Set(identityKey{}, resolved{})
	return nil
}

// recordAttempt appends to the attempt log; failures to do so are logged
// and swallowed since the outcome of the login itself is already decided.
func (i *Identity) recordAttempt(c *dispatch.Context, userID *string, email string, success bool) {
	if err := i.store.RecordLoginAttempt(c.Context(), userID, email, c.Request().RemoteIP(), success); err != nil {
		i.logger.ErrorContext(c.Context(), "recording login attempt failed", slog.Any("error", err))
	}
}
