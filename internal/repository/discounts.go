package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Discount struct {
	ID         string     `db:"id"`
	Code       string     `db:"code"`
	Type       string     `db:"type"`
	Value      int64      `db:"value"` // percent for percentage, cents for fixed
	UsageLimit *int       `db:"usage_limit"`
	UsageCount int        `db:"usage_count"`
	Active     bool       `db:"active"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Valid reports whether the discount may still be redeemed at the given
// instant: active, inside its window, and under its usage limit.
func (d Discount) Valid(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(now) {
		return false
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return false
	}
	return true
}

// Amount returns the reduction the discount takes off a subtotal, in
// cents. Percentage values above 100 behave as 100, and a fixed value is
// capped at the subtotal, so the result never exceeds subtotalCents.
func (d Discount) Amount(subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	switch d.Type {
	case DiscountPercentage:
		pct := d.Value
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return subtotalCents * pct / 100
	case DiscountFixed:
		if d.Value <= 0 {
			return 0
		}
		if d.Value > subtotalCents {
			return subtotalCents
		}
		return d.Value
	default:
		return 0
	}
}

// FindDiscountByCode returns the discount only while it is redeemable;
// inactive, expired, or exhausted codes are ErrNotFound.
func (q *Queries) FindDiscountByCode(ctx context.Context, code string) (Discount, error) {
	rows, err := q.db.Query(ctx, `
		SELECT * FROM discounts
		WHERE code = $1
		AND active
		AND (expires_at IS NULL OR expires_at > now())
		AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		code)
	if err != nil {
		return Discount{}, err
	}
	d, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Discount])
	return d, notFound(err)
}

func (q *Queries) IncrementDiscountUsage(ctx context.Context, discountID string) error {
	_, err := q.db.Exec(ctx,
		`UPDATE discounts SET usage_count = usage_count + 1 WHERE id = $1`, discountID)
	return err
}
