// Package job runs background work on River: transactional mail sends,
// login-attempt pruning, expired-session cleanup. Tasks register under a
// name with a typed JSON payload; periodic tasks carry a cron schedule.
package job

import "errors"

var (
	ErrUnknownTask       = errors.New("job: unknown task")
	ErrInvalidPayload    = errors.New("job: invalid payload")
	ErrAlreadyStarted    = errors.New("job: already started")
	ErrNotStarted        = errors.New("job: not started")
	ErrPoolRequired      = errors.New("job: pool is required")
	ErrHealthcheckFailed = errors.New("job: healthcheck failed")
)
