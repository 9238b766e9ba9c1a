package dispatch

import (
	"fmt"
	"io"
	"log/slog"
)

// Denial reasons surfaced in logs when a capability check fails. The
// lockout reason is deliberately distinguishable from plain authorization
// denials for observability.
const (
	DenyAuthRequired   = "auth_required"
	DenyAdminRequired  = "admin_required"
	DenyVendorRequired = "vendor_required"
	DenyLocked         = "locked"
)

// Verdict is the outcome of a capability check.
type Verdict struct {
	// Denial is the concrete response to return when the check fails.
	// The gate never surfaces a denial as an error.
	Denial *Response
	// Reason names the denial for logs (one of the Deny* constants).
	Reason  string
	Allowed bool
}

// Allow is the verdict for a satisfied capability requirement.
func Allow() Verdict { return Verdict{Allowed: true} }

// Deny builds a failing verdict with its reason and denial response.
func Deny(reason string, denial *Response) Verdict {
	return Verdict{Reason: reason, Denial: denial}
}

// Guard evaluates a route's required capability against the current
// request's identity. Implementations must evaluate fresh per request and
// never trust capability flags cached from a previous request.
type Guard interface {
	Check(c *Context, required Capability) Verdict
}

// Handler declares routes on a router; controllers implement it.
type Handler interface {
	Routes(r *Router)
}

// Router owns the priority-ordered route table and performs matching,
// capability enforcement, and final dispatch. The table is built once at
// startup and is read-only afterward, so it may be shared across
// concurrent requests without synchronization.
//
// Ordering matters: the first structurally-matching route wins, so more
// specific templates must be registered before more general ones.
type Router struct {
	guard  Guard
	logger *slog.Logger
	routes []*Route
}

// NewRouter creates a router backed by the given capability guard.
func NewRouter(guard Guard, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{guard: guard, logger: logger}
}

// Register validates, compiles, and appends a route to the table.
func (r *Router) Register(route Route) error {
	if err := route.compile(); err != nil {
		return err
	}
	if route.Capability != CapabilityNone && r.guard == nil {
		return fmt.Errorf("%w: %s %s requires %s but no guard is configured",
			ErrMalformedRoute, route.Method, route.Pattern, route.Capability)
	}
	r.routes = append(r.routes, &route)
	return nil
}

// GET registers a handler for GET requests.
// An optional capability gates the route; malformed routes panic at startup.
func (r *Router) GET(pattern string, h HandlerFunc, caps ...Capability) {
	r.mustRegister("GET", pattern, h, caps)
}

// POST registers a handler for POST requests.
func (r *Router) POST(pattern string, h HandlerFunc, caps ...Capability) {
	r.mustRegister("POST", pattern, h, caps)
}

// PUT registers a handler for PUT requests.
func (r *Router) PUT(pattern string, h HandlerFunc, caps ...Capability) {
	r.mustRegister("PUT", pattern, h, caps)
}

// PATCH registers a handler for PATCH requests.
func (r *Router) PATCH(pattern string, h HandlerFunc, caps ...Capability) {
	r.mustRegister("PATCH", pattern, h, caps)
}

// DELETE registers a handler for DELETE requests.
func (r *Router) DELETE(pattern string, h HandlerFunc, caps ...Capability) {
	r.mustRegister("DELETE", pattern, h, caps)
}

// Mount lets a controller declare its routes on the router.
func (r *Router) Mount(handlers ...Handler) {
	for _, h := range handlers {
		h.Routes(r)
	}
}

func (r *Router) mustRegister(method, pattern string, h HandlerFunc, caps []Capability) {
	capability := CapabilityNone
	if len(caps) > 0 {
		capability = caps[0]
	}
	if err := r.Register(Route{Method: method, Pattern: pattern, Handler: h, Capability: capability}); err != nil {
		panic(err)
	}
}

// Dispatch scans the route table in registration order and dispatches the
// request to the first route whose method and template both match. A method
// mismatch alone does not stop the scan; a different-method route at the
// same path may still match later. On a match the router captures path
// parameters, enforces the route's capability through the guard, and invokes
// the handler. A full scan with no match yields a 404 response.
func (r *Router) Dispatch(c *Context) (*Response, error) {
	req := c.Request()

	for _, rt := range r.routes {
		if rt.Method != req.Method() {
			continue
		}
		params, ok := rt.match(req.Path())
		if !ok {
			continue
		}

		if rt.Capability != CapabilityNone {
			verdict := r.guard.Check(c, rt.Capability)
			if !verdict.Allowed {
				r.logger.WarnContext(c.Context(), "access denied",
					slog.String("method", req.Method()),
					slog.String("path", req.Path()),
					slog.String("required", rt.Capability.String()),
					slog.String("reason", verdict.Reason),
				)
				if verdict.Denial == nil {
					// A guard that denies without a response is defective;
					// fail closed rather than fall through to the handler.
					return nil, fmt.Errorf("dispatch: guard denied %s %s (%s) without a response",
						req.Method(), req.Path(), verdict.Reason)
				}
				return verdict.Denial, nil
			}
		}

		req.setParams(params)

		resp, err := rt.Handler(c)
		if err != nil {
			return nil, fmt.Errorf("dispatch: %s %s: %w", rt.Method, rt.Pattern, err)
		}
		if resp == nil {
			return nil, fmt.Errorf("%w: %s %s", ErrNilResponse, rt.Method, rt.Pattern)
		}
		return resp, nil
	}

	r.logger.DebugContext(c.Context(), "no route matched",
		slog.String("method", req.Method()),
		slog.String("path", req.Path()),
	)
	return NotFound(), nil
}
