package auth

import (
	"errors"
	"log/slog"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// identityKey indexes the per-request resolution cache in Context values.
type identityKey struct{}

// resolved caches the outcome of one lookup, hit or miss, so the database
// is consulted at most once per request.
type resolved struct {
	user *repository.User
}

// resolve loads the user bound to the request's session, consulting the
// cache first. The returned pointer is nil for anonymous requests, dead
// sessions, and vanished users. Lookup failures degrade to anonymous
// rather than failing the request.
func (i *Identity) resolve(c *dispatch.Context) *repository.User {
	if cached, ok := c.Get(identityKey{}).(resolved); ok {
		return cached.user
	}

	out := resolved{}
	defer func() { c.Set(identityKey{}, out) }()

	sess := c.Session()
	if sess == nil || !sess.IsAuthenticated() {
		return nil
	}

	user, err := i.store.FindUser(c.Context(), *sess.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			i.logger.ErrorContext(c.Context(), "identity lookup failed",
				slog.String("user_id", *sess.UserID),
				slog.Any("error", err),
			)
		}
		return nil
	}

	out.user = &user
	return out.user
}

// CurrentUser returns the authenticated user for the request, if any.
// Accounts that are not active carry no identity here; the guard handles
// their denial separately.
func (i *Identity) CurrentUser(c *dispatch.Context) (repository.User, bool) {
	user := i.resolve(c)
	if user == nil || user.Status != repository.UserStatusActive {
		return repository.User{}, false
	}
	return *user, true
}

// IsAdmin reports whether the request carries an active administrator.
func (i *Identity) IsAdmin(c *dispatch.Context) bool {
	user, ok := i.CurrentUser(c)
	return ok && user.IsAdmin()
}

// IsVendor reports whether the request carries an active vendor.
func (i *Identity) IsVendor(c *dispatch.Context) bool {
	user, ok := i.CurrentUser(c)
	return ok && user.IsVendor()
}
