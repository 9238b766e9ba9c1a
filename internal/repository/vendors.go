package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

type Vendor struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	BusinessName string    `db:"business_name"`
	Slug         string    `db:"slug"`
	Description  string    `db:"description"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	Address      string    `db:"address"`
	Website      string    `db:"website"`
	Featured     bool      `db:"featured"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// NewVendor carries the fields required to open a shop.
type NewVendor struct {
	UserID       string
	BusinessName string
	Slug         string
	Description  string
	Email        string
	Phone        string
	Address      string
	Website      string
}

// CreateVendor opens a shop for the user. Each user can hold at most one
// vendor profile and slugs are unique; both violations surface as
// ErrDuplicate.
func (q *Queries) CreateVendor(ctx context.Context, v NewVendor) (Vendor, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO vendors (id, user_id, business_name, slug, description, email, phone, address, website)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		id.NewULID(), v.UserID, v.BusinessName, v.Slug, v.Description,
		v.Email, v.Phone, v.Address, v.Website)
	if err != nil {
		return Vendor{}, duplicate(err)
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Vendor])
	return out, duplicate(err)
}

func (q *Queries) FindVendor(ctx context.Context, vendorID string) (Vendor, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM vendors WHERE id = $1`, vendorID)
	if err != nil {
		return Vendor{}, err
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Vendor])
	return v, notFound(err)
}

func (q *Queries) FindVendorByUserID(ctx context.Context, userID string) (Vendor, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM vendors WHERE user_id = $1`, userID)
	if err != nil {
		return Vendor{}, err
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Vendor])
	return v, notFound(err)
}

func (q *Queries) FindVendorBySlug(ctx context.Context, slug string) (Vendor, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM vendors WHERE slug = $1`, slug)
	if err != nil {
		return Vendor{}, err
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Vendor])
	return v, notFound(err)
}

// VendorSlugExists reports whether a slug is already taken, for collision
// handling before insert.
func (q *Queries) VendorSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vendors WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

func (q *Queries) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM vendors ORDER BY business_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Vendor])
}

func (q *Queries) FeaturedVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM vendors WHERE featured ORDER BY business_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Vendor])
}

func (q *Queries) UpdateVendor(ctx context.Context, vendorID string, v NewVendor) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE vendors
		SET business_name = $2, description = $3, email = $4, phone = $5,
		    address = $6, website = $7, updated_at = now()
		WHERE id = $1`,
		vendorID, v.BusinessName, v.Description, v.Email, v.Phone, v.Address, v.Website)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VendorTotalSales sums quantity*unit price across all order items that
// belong to the vendor's products, in cents.
func (q *Queries) VendorTotalSales(ctx context.Context, vendorID string) (int64, error) {
	var cents int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(oi.quantity * oi.price_cents), 0)
		FROM order_items oi
		WHERE oi.vendor_id = $1`,
		vendorID).Scan(&cents)
	return cents, err
}
