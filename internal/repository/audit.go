package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// AuditEntry is one recorded privileged action. Details is free-form JSON
// captured at write time (request path, method, changed fields).
type AuditEntry struct {
	ID        string    `db:"id"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	Details   []byte    `db:"details"`
	IP        string    `db:"ip"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

// AuditEntryWithActor joins the actor's display name for list views.
type AuditEntryWithActor struct {
	AuditEntry
	ActorName string `db:"actor_name"`
}

// AuditFilter narrows ListAudit; zero values mean "no filter".
type AuditFilter struct {
	Search string
	Action string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// RecordAudit appends an audit row. Audit writes are best-effort at the
// call sites; a failure is logged, never surfaced to the request.
func (q *Queries) RecordAudit(ctx context.Context, actorID, action string, details []byte, ip, userAgent string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, details, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id.NewULID(), actorID, action, details, ip, userAgent)
	return err
}

func (q *Queries) FindAuditEntry(ctx context.Context, entryID string) (AuditEntryWithActor, error) {
	rows, err := q.db.Query(ctx, `
		SELECT l.*, u.name AS actor_name
		FROM audit_logs l
		JOIN users u ON u.id = l.actor_id
		WHERE l.id = $1`,
		entryID)
	if err != nil {
		return AuditEntryWithActor{}, err
	}
	e, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[AuditEntryWithActor])
	return e, notFound(err)
}

func (q *Queries) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntryWithActor, error) {
	sql, args := buildAuditQuery(`
		SELECT l.*, u.name AS actor_name
		FROM audit_logs l
		JOIN users u ON u.id = l.actor_id`, f)
	sql += ` ORDER BY l.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[AuditEntryWithActor])
}

func (q *Queries) CountAudit(ctx context.Context, f AuditFilter) (int64, error) {
	sql, args := buildAuditQuery(`
		SELECT count(*)
		FROM audit_logs l
		JOIN users u ON u.id = l.actor_id`, f)
	var n int64
	err := q.db.QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

// AuditActions lists the distinct action names, for the filter dropdown.
func (q *Queries) AuditActions(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx,
		`SELECT DISTINCT action FROM audit_logs ORDER BY action`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func buildAuditQuery(base string, f AuditFilter) (string, []any) {
	sql := base + ` WHERE true`
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		sql += fmt.Sprintf(` AND (u.name ILIKE $%d OR l.action ILIKE $%d OR l.details::text ILIKE $%d)`, n, n, n)
	}
	if f.Action != "" {
		args = append(args, f.Action)
		sql += fmt.Sprintf(` AND l.action = $%d`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		sql += fmt.Sprintf(` AND l.created_at >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		sql += fmt.Sprintf(` AND l.created_at <= $%d`, len(args))
	}
	return sql, args
}
