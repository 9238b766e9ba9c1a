package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

type Product struct {
	ID          string    `db:"id"`
	VendorID    string    `db:"vendor_id"`
	CategoryID  *string   `db:"category_id"`
	Name        string    `db:"name"`
	Slug        string    `db:"slug"`
	Description string    `db:"description"`
	PriceCents  int64     `db:"price_cents"`
	Stock       int       `db:"stock"`
	ImagePath   string    `db:"image_path"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ProductListing is a product joined with its vendor's public identity,
// the shape every storefront page renders.
type ProductListing struct {
	Product
	VendorName string `db:"vendor_name"`
	VendorSlug string `db:"vendor_slug"`
}

const productListingSelect = `
	SELECT p.*, v.business_name AS vendor_name, v.slug AS vendor_slug
	FROM products p
	JOIN vendors v ON v.id = p.vendor_id`

// NewProduct carries the vendor-editable fields of a product.
type NewProduct struct {
	VendorID    string
	CategoryID  *string
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Stock       int
	Active      bool
}

// ProductFilter narrows ListProducts; zero values mean "no filter".
type ProductFilter struct {
	Search     string
	CategoryID string
	VendorID   string
	Sort       string // created_at, name, price_cents
	Descending bool
	Limit      int
	Offset     int
}

// sortColumn whitelists the ORDER BY target; filters come from query
// strings and must never reach the SQL text unchecked.
func (f ProductFilter) sortColumn() string {
	switch f.Sort {
	case "name", "price_cents":
		return f.Sort
	default:
		return "created_at"
	}
}

func (q *Queries) CreateProduct(ctx context.Context, p NewProduct) (Product, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO products (id, vendor_id, category_id, name, slug, description, price_cents, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *`,
		id.NewULID(), p.VendorID, p.CategoryID, p.Name, p.Slug,
		p.Description, p.PriceCents, p.Stock, p.Active)
	if err != nil {
		return Product{}, duplicate(err)
	}
	out, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Product])
	return out, duplicate(err)
}

func (q *Queries) FindProduct(ctx context.Context, productID string) (ProductListing, error) {
	rows, err := q.db.Query(ctx, productListingSelect+` WHERE p.id = $1`, productID)
	if err != nil {
		return ProductListing{}, err
	}
	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[ProductListing])
	return p, notFound(err)
}

// ListProducts returns active listings ordered and paged per the filter.
func (q *Queries) ListProducts(ctx context.Context, f ProductFilter) ([]ProductListing, error) {
	sql := productListingSelect + ` WHERE p.active`
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		sql += fmt.Sprintf(` AND (p.name ILIKE $%d OR p.description ILIKE $%d)`, len(args), len(args))
	}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		sql += fmt.Sprintf(` AND p.category_id = $%d`, len(args))
	}
	if f.VendorID != "" {
		args = append(args, f.VendorID)
		sql += fmt.Sprintf(` AND p.vendor_id = $%d`, len(args))
	}
	dir := "ASC"
	if f.Descending {
		dir = "DESC"
	}
	sql += fmt.Sprintf(` ORDER BY p.%s %s`, f.sortColumn(), dir)
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
	return pgx.CollectRows(rows, pgx.RowToStructByName[ProductListing])
}

// ProductsByVendor lists everything a vendor sells, inactive included,
// for the vendor dashboard.
func (q *Queries) ProductsByVendor(ctx context.Context, vendorID string) ([]ProductListing, error) {
	rows, err := q.db.Query(ctx,
		productListingSelect+` WHERE p.vendor_id = $1 ORDER BY p.created_at DESC`, vendorID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ProductListing])
}

// AllProducts lists every product for the admin catalogue view.
func (q *Queries) AllProducts(ctx context.Context, limit, offset int) ([]ProductListing, error) {
	rows, err := q.db.Query(ctx,
		productListingSelect+` ORDER BY p.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ProductListing])
}

// ProductExport is a product with the joined names CSV export needs.
type ProductExport struct {
	Product
	VendorName   string `db:"vendor_name"`
	CategoryName string `db:"category_name"`
}

// ExportProducts lists every product, oldest first, for CSV export.
func (q *Queries) ExportProducts(ctx context.Context) ([]ProductExport, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.*, v.business_name AS vendor_name, coalesce(c.name, '') AS category_name
		FROM products p
		JOIN vendors v ON v.id = p.vendor_id
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ProductExport])
}

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n)
	return n, err
}

// RelatedProducts picks a handful of active products from the same category.
func (q *Queries) RelatedProducts(ctx context.Context, productID, categoryID string, limit int) ([]ProductListing, error) {
	rows, err := q.db.Query(ctx, productListingSelect+`
		WHERE p.category_id = $1 AND p.id <> $2 AND p.active
		LIMIT $3`,
		categoryID, productID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[ProductListing])
}

func (q *Queries) UpdateProduct(ctx context.Context, productID string, p NewProduct) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, category_id = $5,
		    stock = $6, active = $7, updated_at = now()
		WHERE id = $1`,
		productID, p.Name, p.Description, p.PriceCents, p.CategoryID, p.Stock, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateProductImage(ctx context.Context, productID, imagePath string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE products SET image_path = $2, updated_at = now() WHERE id = $1`,
		productID, imagePath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeleteProduct(ctx context.Context, productID string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock reserves quantity units; fails with ErrNotFound when the
// product has insufficient stock, which keeps checkout honest under
// concurrent purchases.
func (q *Queries) DecrementStock(ctx context.Context, productID string, quantity int) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type Category struct {
	ID   string `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

func (q *Queries) Categories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Category])
}

func (q *Queries) FindCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	rows, err := q.db.Query(ctx, `SELECT * FROM categories WHERE slug = $1`, slug)
	if err != nil {
		return Category{}, err
	}
	c, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Category])
	return c, notFound(err)
}

type Review struct {
	ID        string    `db:"id"`
	ProductID string    `db:"product_id"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	Rating    int       `db:"rating"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateReview stores a product review. Body is expected to be sanitized
// by the caller before it gets here.
func (q *Queries) CreateReview(ctx context.Context, productID, userID string, rating int, body string) (Review, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO reviews (id, product_id, user_id, rating, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *, (SELECT name FROM users WHERE id = $3) AS user_name`,
		id.NewULID(), productID, userID, rating, body)
	if err != nil {
		return Review{}, err
	}
	r, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Review])
	return r, err
}

func (q *Queries) ProductReviews(ctx context.Context, productID string) ([]Review, error) {
	rows, err := q.db.Query(ctx, `
		SELECT r.*, u.name AS user_name
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`,
		productID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Review])
}
