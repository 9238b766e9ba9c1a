package dispatch

import (
	"fmt"
	"strings"
)

// Capability is a named authorization level a route may require.
type Capability int

const (
	// CapabilityNone marks an open route.
	CapabilityNone Capability = iota
	// CapabilityAuthenticated requires a resolved identity.
	CapabilityAuthenticated
	// CapabilityAdministrator requires an authenticated administrator.
	CapabilityAdministrator
	// CapabilityVendor requires an authenticated vendor.
	CapabilityVendor
)

func (c Capability) String() string {
	switch c {
	case CapabilityAuthenticated:
		return "authenticated"
	case CapabilityAdministrator:
		return "administrator"
	case CapabilityVendor:
		return "vendor"
	default:
		return "none"
	}
}

// Route binds a method and path template to a handler with an optional
// required capability. Routes are immutable once registered.
type Route struct {
	Handler    HandlerFunc
	Method     string
	Pattern    string
	Capability Capability

	segments []segment
}

// segment is one compiled template segment: either a literal that must
// match byte-for-byte, or a named placeholder capturing exactly one
// non-empty path segment.
type segment struct {
	literal string
	param   string
}

// compile validates the route and precompiles its pattern into a segment
// matcher. Compilation happens once at registration so per-request matching
// is a plain scan with no parsing.
func (rt *Route) compile() error {
	switch rt.Method {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return fmt.Errorf("%w: method %q", ErrMalformedRoute, rt.Method)
	}
	if rt.Handler == nil {
		return fmt.Errorf("%w: %s %s: nil handler", ErrMalformedRoute, rt.Method, rt.Pattern)
	}
	if rt.Pattern == "" || rt.Pattern[0] != '/' {
		return fmt.Errorf("%w: pattern %q must start with /", ErrMalformedRoute, rt.Pattern)
	}

	parts := splitPath(rt.Pattern)
	segs := make([]segment, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: pattern %q contains an empty segment", ErrMalformedRoute, rt.Pattern)
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return fmt.Errorf("%w: pattern %q has an unnamed placeholder", ErrMalformedRoute, rt.Pattern)
			}
			if _, dup := seen[name]; dup {
				return fmt.Errorf("%w: pattern %q repeats placeholder %q", ErrMalformedRoute, rt.Pattern, name)
			}
			seen[name] = struct{}{}
			segs = append(segs, segment{param: name})
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return fmt.Errorf("%w: pattern %q has a malformed placeholder segment %q", ErrMalformedRoute, rt.Pattern, part)
		}
		segs = append(segs, segment{literal: part})
	}

	rt.segments = segs
	return nil
}

// match attempts a structural match of the route's template against a
// normalized request path. Segment counts must be equal; literals compare
// case-sensitively; a placeholder captures exactly one non-empty segment.
// On success it returns the placeholder captures by name.
func (rt *Route) match(path string) (map[string]string, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}
	parts := splitPath(path)
	if len(parts) != len(rt.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range rt.segments {
		if seg.param != "" {
			// A placeholder must capture at least one character; an empty
			// segment produced by a double slash never matches.
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = parts[i]
			continue
		}
		if parts[i] != seg.literal {
			return nil, false
		}
	}

	if params == nil {
		params = map[string]string{}
	}
	return params, true
}

// splitPath splits a rooted path into its segments. The root path "/" has
// zero segments; "/a//b" yields an empty middle segment which can never
// match a compiled template.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
