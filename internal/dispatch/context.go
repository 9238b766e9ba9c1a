package dispatch

import (
	"context"
	"io"
	"log/slog"

	"github.com/bazaarlabs/bazaar/pkg/session"
)

// Flash message keys stored in the session between a redirect and the next
// page render.
const (
	FlashError   = "flash_error"
	FlashSuccess = "flash_success"
)

// intendedPathKey remembers where an unauthenticated caller was headed so a
// successful login can send them back.
const intendedPathKey = "intended_path"

// Context carries one request through the middleware chain and the router.
// It bundles the Request with request-scoped state: the session (attached by
// the hosting layer or the session-bootstrap step), a logger, and a value
// bag for cross-cutting concerns such as request IDs and the resolved
// identity cache. A Context never outlives its request.
type Context struct {
	ctx    context.Context
	req    *Request
	sess   *session.Session
	logger *slog.Logger
	values map[any]any
}

// NewContext creates a request context. A nil logger falls back to a
// discarding one so the pipeline never has to nil-check.
func NewContext(ctx context.Context, req *Request, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Context{
		ctx:    ctx,
		req:    req,
		logger: logger,
		values: make(map[any]any),
	}
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context { return c.ctx }

// WithContext swaps the underlying context.Context, letting middleware
// attach values or deadlines for everything downstream.
func (c *Context) WithContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// Request returns the request snapshot.
func (c *Context) Request() *Request { return c.req }

// Session returns the current session, or nil if none is attached.
func (c *Context) Session() *session.Session { return c.sess }

// SetSession attaches a session to the request.
func (c *Context) SetSession(s *session.Session) { c.sess = s }

// Logger returns the request-scoped logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Set stores a request-scoped value.
func (c *Context) Set(key, value any) { c.values[key] = value }

// Get retrieves a request-scoped value, or nil if absent.
func (c *Context) Get(key any) any { return c.values[key] }

// Param returns a path parameter captured by the router.
func (c *Context) Param(name string) string { return c.req.Param(name) }

// Query returns a query parameter.
func (c *Context) Query(name string) string { return c.req.Query(name) }

// Form returns a body parameter.
func (c *Context) Form(name string) string { return c.req.Form(name) }

// SetFlash stores a one-shot message in the session under the given key.
// No-op when no session is attached.
func (c *Context) SetFlash(key, message string) {
	if c.sess != nil {
		c.sess.SetValue(key, message)
	}
}

// Flash reads and deletes a one-shot message from the session.
func (c *Context) Flash(key string) string {
	if c.sess == nil {
		return ""
	}
	msg, err := session.Value[string](c.sess, key)
	if err != nil {
		return ""
	}
	c.sess.DeleteValue(key)
	return msg
}

// RememberPath stores the originally-intended path for post-login redirect.
func (c *Context) RememberPath(path string) {
	if c.sess != nil {
		c.sess.SetValue(intendedPathKey, path)
	}
}

// IntendedPath reads and clears the remembered path, falling back to the
// given default.
func (c *Context) IntendedPath(fallback string) string {
	if c.sess == nil {
		return fallback
	}
	path, err := session.Value[string](c.sess, intendedPathKey)
	if err != nil || path == "" {
		return fallback
	}
	c.sess.DeleteValue(intendedPathKey)
	return path
}

// LogDebug logs a debug message on the request logger.
func (c *Context) LogDebug(msg string, attrs ...any) {
	c.logger.DebugContext(c.ctx, msg, attrs...)
}

// LogInfo logs an info message on the request logger.
func (c *Context) LogInfo(msg string, attrs ...any) {
	c.logger.InfoContext(c.ctx, msg, attrs...)
}

// LogWarn logs a warning on the request logger.
func (c *Context) LogWarn(msg string, attrs ...any) {
	c.logger.WarnContext(c.ctx, msg, attrs...)
}

// LogError logs an error on the request logger.
func (c *Context) LogError(msg string, attrs ...any) {
	c.logger.ErrorContext(c.ctx, msg, attrs...)
}
