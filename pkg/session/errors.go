package session

import "errors"

// Session errors.
var (
	// ErrNotFound is returned when a session or session value does not exist.
	ErrNotFound = errors.New("session: not found")

	// ErrExpired is returned when a session has expired.
	ErrExpired = errors.New("session: expired")

	// ErrTypeMismatch is returned when a stored value has a different type
	// than requested.
	ErrTypeMismatch = errors.New("session: value type mismatch")
)
