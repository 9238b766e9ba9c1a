package auth

import (
	"net/http"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// User-facing denial messages, flashed before the redirect.
const (
	msgLoginRequired = "Please log in to access this page"
	msgAdminRequired = "Administrative access required"
	msgVendorOnly    = "Vendor access required"
	msgLocked        = "Your account has been locked due to repeated failed login attempts"
)

// Check implements dispatch.Guard. Denials are ordinary redirect responses
// carrying a flash message; an unauthenticated caller also gets their
// intended path remembered for the post-login redirect.
func (i *Identity) Check(c *dispatch.Context, required dispatch.Capability) dispatch.Verdict {
	user := i.resolve(c)

	if user != nil && user.Status == repository.UserStatusLocked {
		c.SetFlash(dispatch.FlashError, msgLocked)
		return dispatch.Deny(dispatch.DenyLocked,
			dispatch.Redirect(http.StatusFound, "/login"))
	}

	if user == nil || user.Status != repository.UserStatusActive {
		c.SetFlash(dispatch.FlashError, msgLoginRequired)
		c.RememberPath(c.Request().Target())
		return dispatch.Deny(dispatch.DenyAuthRequired,
			dispatch.Redirect(http.StatusFound, "/login"))
	}

	switch required {
	case dispatch.CapabilityAuthenticated:
		return dispatch.Allow()
	case dispatch.CapabilityAdministrator:
		if user.IsAdmin() {
			return dispatch.Allow()
		}
		c.SetFlash(dispatch.FlashError, msgAdminRequired)
		return dispatch.Deny(dispatch.DenyAdminRequired,
			dispatch.Redirect(http.StatusFound, "/login"))
	case dispatch.CapabilityVendor:
		if user.IsVendor() {
			return dispatch.Allow()
		}
		c.SetFlash(dispatch.FlashError, msgVendorOnly)
		return dispatch.Deny(dispatch.DenyVendorRequired,
			dispatch.Redirect(http.StatusFound, "/vendor/register"))
	default:
		return dispatch.Allow()
	}
}
