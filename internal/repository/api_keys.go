package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// APIKey grants read access to the catalog API. Only a SHA-256 digest of
// the key material is stored; the plaintext is returned once at creation
// and never again.
type APIKey struct {
	ID         string     `db:"id"`
	UserID     string     `db:"user_id"`
	Label      string     `db:"label"`
	Digest     string     `db:"digest"`
	CreatedAt  time.Time  `db:"created_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
}

func digestAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CreateAPIKey issues a key for the user and returns the plaintext.
func (q *Queries) CreateAPIKey(ctx context.Context, userID, label string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	key := hex.EncodeToString(raw)

	_, err := q.db.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, label, digest)
		VALUES ($1, $2, $3, $4)`,
		id.NewULID(), userID, label, digestAPIKey(key))
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey looks the key up by digest and stamps its last use.
// Unknown keys report ErrNotFound.
func (q *Queries) ValidateAPIKey(ctx context.Context, key string) (APIKey, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE api_keys SET last_used_at = now()
		WHERE digest = $1
		RETURNING *`,
		digestAPIKey(key))
	if err != nil {
		return APIKey{}, err
	}
	k, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[APIKey])
	return k, notFound(err)
}

// RevokeAPIKey deletes one of the user's keys.
func (q *Queries) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
