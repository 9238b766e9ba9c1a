package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// User account statuses. A user whose status is anything but active cannot
// authenticate; locked is set automatically by the brute-force guard.
const (
	UserStatusActive   = "active"
	UserStatusLocked   = "locked"
	UserStatusDisabled = "disabled"
)

// User roles.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// IsAdmin reports whether the user carries the administrator role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsVendor reports whether the user carries the vendor role.
func (u User) IsVendor() bool { return u.Role == RoleVendor }

func (q *Queries) FindUser(ctx context.Context, userID string) (User, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM users WHERE id = $1`, userID)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
	return u, notFound(err)
}

func (q *Queries) FindUserByEmail(ctx context.Context, email string) (User, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return User{}, err
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
	return u, notFound(err)
}

// CreateUser inserts a new account. Returns ErrDuplicate when the email is
// already registered.
func (q *Queries) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`,
		id.NewULID(), name, email, passwordHash, RoleCustomer, UserStatusActive)
	if err != nil {
		return User{}, duplicate(err)
	}
	u, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[User])
	return u, duplicate(err)
}

// UpdateUser applies the admin-editable fields.
func (q *Queries) UpdateUser(ctx context.Context, userID, name, email, role, status string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET name = $2, email = $3, role = $4, status = $5, updated_at = now()
		WHERE id = $1`,
		userID, name, email, role, status)
	if err != nil {
		return duplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserRole promotes or demotes a user without touching profile fields.
func (q *Queries) SetUserRole(ctx context.Context, userID, role string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockUser marks the account locked; the capability gate denies all
// requests from a locked account until the lockout window expires or an
// administrator resets the status.
func (q *Queries) LockUser(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = now() WHERE id = $1`,
		userID, UserStatusLocked)
	return err
}

// UnlockUser lifts a brute-force lock. Only a locked account flips back to
// active; disabled accounts stay disabled.
func (q *Queries) UnlockUser(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		userID, UserStatusActive, UserStatusLocked)
	return err
}

func (q *Queries) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[User])
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

// PasswordReset is a single-use, time-limited token mailed to the user.
type PasswordReset struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}

func (q *Queries) CreateResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)`,
		token, userID, expiresAt)
	return duplicate(err)
}

// FindValidResetToken returns the reset row only while it is unused and
// unexpired; anything else is ErrNotFound.
func (q *Queries) FindValidResetToken(ctx context.Context, token string) (PasswordReset, error) {
	rows, err := q.db.Query(ctx, `
		SELECT * FROM password_resets
		WHERE token = $1 AND used = false AND expires_at > now()`,
		token)
	if err != nil {
		return PasswordReset{}, err
	}
	pr, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[PasswordReset])
	return pr, notFound(err)
}

// ConsumeResetToken marks the token used so it cannot be replayed.
func (q *Queries) ConsumeResetToken(ctx context.Context, token string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE password_resets SET used = true WHERE token = $1 AND used = false`, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
