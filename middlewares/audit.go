package middlewares

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// AuditRecorder persists audit entries; *repository.Queries satisfies it.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, actorID, action string, details []byte, ip, userAgent string) error
}

// ActorResolver yields the current user, if any; *auth.Identity satisfies it.
type ActorResolver interface {
	CurrentUser(c *dispatch.Context) (repository.User, bool)
}

// auditDetails is the JSON payload stored with each entry.
type auditDetails struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status,omitempty"`
}

// Audit records every state-changing request made by an authenticated
// user, after the handler has produced its response. Writes are
// best-effort: a failed insert is logged and the response goes out
// unchanged.
func Audit(recorder AuditRecorder, actors ActorResolver) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (*dispatch.Response, error) {
			resp, err := next(c)
			if err != nil || !stateChanging(c.Request().Method()) {
				return resp, err
			}

			user, ok := actors.CurrentUser(c)
			if !ok {
				return resp, err
			}

			details, _ := json.Marshal(auditDetails{
				Method: c.Request().Method(),
				Path:   c.Request().Path(),
				Status: resp.StatusCode,
			})
			action := actionName(c.Request().Method(), c.Request().Path())
			if recErr := recorder.RecordAudit(c.Context(), user.ID, action,
				details, c.Request().RemoteIP(), c.Request().UserAgent()); recErr != nil {
				c.LogError("audit write failed", "action", action, "error", recErr)
			}

			return resp, err
		}
	}
}

// actionName derives an action label from the request shape, e.g.
// "post:admin.products.create".
func actionName(method, path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		trimmed = "root"
	}
	return strings.ToLower(method) + ":" + strings.ReplaceAll(trimmed, "/", ".")
}
