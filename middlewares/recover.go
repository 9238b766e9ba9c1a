package middlewares

import (
	"log/slog"
	"runtime"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
)

// DefaultStackSize caps the captured stack trace in bytes.
const DefaultStackSize = 4096

// RecoverConfig configures the recover middleware.
type RecoverConfig struct {
	StackSize         int
	DisablePrintStack bool
}

// RecoverOption configures RecoverConfig.
type RecoverOption func(*RecoverConfig)

// WithRecoverStackSize sets the maximum stack trace size.
func WithRecoverStackSize(size int) RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.StackSize = size
	}
}

// WithRecoverDisablePrintStack drops the stack trace from logs.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(cfg *RecoverConfig) {
		cfg.DisablePrintStack = true
	}
}

// Recover catches handler panics, logs them with a trimmed stack, and
// turns them into a plain 500 response so one broken request cannot take
// the process down.
func Recover(opts ...RecoverOption) dispatch.Middleware {
	cfg := &RecoverConfig{StackSize: DefaultStackSize}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (resp *dispatch.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					attrs := []any{
						slog.Any("panic", r),
						slog.String("method", c.Request().Method()),
						slog.String("path", c.Request().Path()),
					}
					if !cfg.DisablePrintStack {
						stack := make([]byte, cfg.StackSize)
						stack = stack[:runtime.Stack(stack, false)]
						attrs = append(attrs, slog.String("stack", string(stack)))
					}
					c.LogError("panic recovered", attrs...)
					resp, err = dispatch.Internal(), nil
				}
			}()
			return next(c)
		}
	}
}
