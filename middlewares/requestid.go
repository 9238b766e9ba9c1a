package middlewares

import (
	"context"
	"log/slog"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/pkg/id"
	"github.com/bazaarlabs/bazaar/pkg/logger"
)

// requestIDKey is the context key under which the request ID travels.
type requestIDKey struct{}

// DefaultRequestIDHeaders are checked in order for an ID handed in by a
// proxy or the caller.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID"}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Generator      func() string
	ResponseHeader string
	Headers        []string
}

// RequestIDOption configures RequestIDConfig.
type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders sets the inbound headers checked for an existing ID.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Headers = headers
	}
}

// WithRequestIDGenerator sets a custom ID generator.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Generator = gen
	}
}

// RequestID assigns each request a ULID (or adopts one from a trusted
// header), stores it in the context for log extractors, and echoes it on
// the response.
func RequestID(opts ...RequestIDOption) dispatch.Middleware {
	cfg := &RequestIDConfig{
		Generator:      id.NewULID,
		ResponseHeader: "X-Request-ID",
		Headers:        DefaultRequestIDHeaders,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (*dispatch.Response, error) {
			rid := ""
			for _, header := range cfg.Headers {
				if v := c.Request().Header(header); v != "" {
					rid = v
					break
				}
			}
			if rid == "" {
				rid = cfg.Generator()
			}

			c.WithContext(context.WithValue(c.Context(), requestIDKey{}, rid))
			c.Set(requestIDKey{}, rid)

			resp, err := next(c)
			if resp != nil && cfg.ResponseHeader != "" {
				resp = resp.WithHeader(cfg.ResponseHeader, rid)
			}
			return resp, err
		}
	}
}

// RequestIDFrom returns the request ID assigned by the middleware, or "".
func RequestIDFrom(c *dispatch.Context) string {
	rid, _ := c.Get(requestIDKey{}).(string)
	return rid
}

// RequestIDExtractor surfaces the request ID as a request_id attribute on
// every log line written with the request's context.
func RequestIDExtractor() logger.Extractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
			return slog.String("request_id", rid), true
		}
		return slog.Attr{}, false
	}
}
