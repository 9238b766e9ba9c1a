package repository

import (
	"context"
	"time"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// LoginAttempt records one authentication try. Attempts persist across
// sessions and restarts; the brute-force window is evaluated against this
// table, never against in-memory counters.
type LoginAttempt struct {
	ID        string    `db:"id"`
	UserID    *string   `db:"user_id"` // nil when the email matched no account
	Email     string    `db:"email"`
	IP        string    `db:"ip"`
	Success   bool      `db:"success"`
	CreatedAt time.Time `db:"created_at"`
}

// RecordLoginAttempt appends an attempt row.
func (q *Queries) RecordLoginAttempt(ctx context.Context, userID *string, email, ip string, success bool) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO login_attempts (id, user_id, email, ip, success)
		VALUES ($1, $2, $3, $4, $5)`,
		id.NewULID(), userID, email, ip, success)
	return err
}

// CountRecentFailures counts failed attempts for the user inside the
// sliding window ending now.
func (q *Queries) CountRecentFailures(ctx context.Context, userID string, window time.Duration) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM login_attempts
		WHERE user_id = $1 AND NOT success AND created_at > now() - make_interval(secs => $2)`,
		userID, window.Seconds()).Scan(&n)
	return n, err
}

// PruneLoginAttempts deletes attempts older than the cutoff and returns
// how many rows went away. Run periodically; rows inside any plausible
// lockout window must be kept.
func (q *Queries) PruneLoginAttempts(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM login_attempts WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
