package dispatch

import "errors"

var (
	// ErrMalformedRoute indicates a structurally invalid route at
	// registration time. This is a startup configuration error and is
	// deliberately fatal: route helpers panic on it.
	ErrMalformedRoute = errors.New("dispatch: malformed route")

	// ErrNilResponse indicates a handler returned neither a response nor an
	// error, which is a programming defect.
	ErrNilResponse = errors.New("dispatch: handler returned nil response")
)
