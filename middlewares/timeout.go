package middlewares

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
)

// DefaultTimeout bounds a request when Timeout is used with no duration.
const DefaultTimeout = 30 * time.Second

// Timeout attaches a deadline to the request context. Handlers observe it
// through ctx cancellation (database calls, outbound requests); when the
// deadline fires the request resolves to a 504.
func Timeout(d time.Duration) dispatch.Middleware {
	if d <= 0 {
		d = DefaultTimeout
	}

	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (*dispatch.Response, error) {
			ctx, cancel := context.WithTimeout(c.Context(), d)
			defer cancel()
			c.WithContext(ctx)

			resp, err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				c.LogWarn("request timed out",
					"method", c.Request().Method(),
					"path", c.Request().Path(),
					"timeout", d.String(),
				)
				return dispatch.Text(http.StatusGatewayTimeout, "Request timed out"), nil
			}
			return resp, err
		}
	}
}
