package middlewares

import (
	"crypto/subtle"
	"net/http"
	"slices"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
)

// csrfFailureMessage is flashed before bouncing a rejected request back.
const csrfFailureMessage = "Invalid security token. Please try again."

// DefaultCSRFExcludedPaths are endpoints called from outside the rendered
// pages and so cannot carry our token; they authenticate by other means.
// The cart API endpoints ride the session like the storefront XHR does.
var DefaultCSRFExcludedPaths = []string{
	"/webhook/stripe",
	"/api/external-callback",
	"/api/cart/add",
	"/api/cart/update",
	"/api/cart/remove",
}

// CSRFConfig configures the anti-forgery middleware.
type CSRFConfig struct {
	// ExcludedPaths skip verification entirely (exact match).
	ExcludedPaths []string
	// HeaderName is the alternative token carrier for non-form clients.
	HeaderName string
}

// CSRFOption configures CSRFConfig.
type CSRFOption func(*CSRFConfig)

// WithCSRFExcludedPaths replaces the excluded path list.
func WithCSRFExcludedPaths(paths ...string) CSRFOption {
	return func(cfg *CSRFConfig) {
		cfg.ExcludedPaths = paths
	}
}

// CSRF verifies the anti-forgery token on every state-changing request.
// The token arrives as the _token form field or the X-CSRF-Token header
// and must equal the session's token byte for byte. Rejected requests
// bounce back to the Referer (or /) with a flash; safe methods and
// excluded webhook paths pass untouched.
func CSRF(opts ...CSRFOption) dispatch.Middleware {
	cfg := &CSRFConfig{
		ExcludedPaths: DefaultCSRFExcludedPaths,
		HeaderName:    "X-CSRF-Token",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (*dispatch.Response, error) {
			if !stateChanging(c.Request().Method()) {
				return next(c)
			}
			if slices.Contains(cfg.ExcludedPaths, c.Request().Path()) {
				return next(c)
			}

			want := CSRFToken(c)
			got := c.Request().Form(csrfTokenKey)
			if got == "" {
				got = c.Request().Header(cfg.HeaderName)
			}

			if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
				c.LogWarn("csrf token mismatch",
					"method", c.Request().Method(),
					"path", c.Request().Path(),
					"ip", c.Request().RemoteIP(),
				)
				c.SetFlash(dispatch.FlashError, csrfFailureMessage)

				back := c.Request().Referer()
				if back == "" {
					back = "/"
				}
				return dispatch.Redirect(http.StatusFound, back), nil
			}

			return next(c)
		}
	}
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
