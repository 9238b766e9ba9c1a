// Package jobs holds the background tasks the storefront enqueues: the
// password-reset mail on demand, plus scheduled housekeeping for the
// login_attempts table and expired sessions.
package jobs

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/mailer"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// TaskPasswordReset is the queue name handlers enqueue reset mails under.
const TaskPasswordReset = "send_password_reset"

//go:embed templates
var Templates embed.FS

// PasswordResetPayload carries everything the mail template needs; the
// reset token itself is never logged.
type PasswordResetPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// PasswordResetMail sends the reset link for a requested password reset.
type PasswordResetMail struct {
	mailer  *mailer.Mailer
	baseURL string
}

func NewPasswordResetMail(m *mailer.Mailer, baseURL string) *PasswordResetMail {
	return &PasswordResetMail{mailer: m, baseURL: baseURL}
}

func (t *PasswordResetMail) Name() string { return TaskPasswordReset }

func (t *PasswordResetMail) Handle(ctx context.Context, p PasswordResetPayload) error {
	return t.mailer.Send(ctx, mailer.SendParams{
		To:       p.Email,
		Template: "password_reset.md",
		Data: map[string]string{
			"Name":     p.Name,
			"ResetURL": t.baseURL + "/password/reset/" + p.Token,
		},
	})
}

// LoginAttemptPruner drops login_attempts rows older than the retention
// window. Rows inside the lockout window must survive; everything older is
// dead weight.
type LoginAttemptPruner struct {
	queries   *repository.Queries
	logger    *slog.Logger
	retention time.Duration
}

func NewLoginAttemptPruner(q *repository.Queries, retention time.Duration, logger *slog.Logger) *LoginAttemptPruner {
	return &LoginAttemptPruner{queries: q, retention: retention, logger: logger}
}

func (t *LoginAttemptPruner) Name() string { return "prune_login_attempts" }

// Schedule runs hourly on the hour.
func (t *LoginAttemptPruner) Schedule() string { return "0 * * * *" }

func (t *LoginAttemptPruner) Handle(ctx context.Context) error {
	pruned, err := t.queries.PruneLoginAttempts(ctx, time.Now().Add(-t.retention))
	if err != nil {
		return fmt.Errorf("jobs: prune login attempts: %w", err)
	}
	if pruned > 0 {
		t.logger.InfoContext(ctx, "pruned login attempts", slog.Int64("rows", pruned))
	}
	return nil
}

// SessionSweeper removes sessions past their expiry from the store. With the
// Redis store this is a no-op since keys expire via TTL.
type SessionSweeper struct {
	store session.Store
}

func NewSessionSweeper(store session.Store) *SessionSweeper {
	return &SessionSweeper{store: store}
}

func (t *SessionSweeper) Name() string { return "sweep_sessions" }

// Schedule runs every 15 minutes.
func (t *SessionSweeper) Schedule() string { return "*/15 * * * *" }

func (t *SessionSweeper) Handle(ctx context.Context) error {
	return t.store.DeleteExpired(ctx, time.Now())
}
