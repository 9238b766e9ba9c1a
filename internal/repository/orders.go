package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bazaarlabs/bazaar/pkg/id"
)

// Order statuses in fulfilment order; cancelled is terminal from any
// non-terminal state.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// OrderStatuses lists every status, for select inputs.
var OrderStatuses = []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

// ValidOrderStatus reports whether s is one of the known statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	ID            string    `db:"id"`
	Number        string    `db:"number"`
	UserID        string    `db:"user_id"`
	Status        string    `db:"status"`
	SubtotalCents int64     `db:"subtotal_cents"`
	DiscountCents int64     `db:"discount_cents"`
	TotalCents    int64     `db:"total_cents"`
	DiscountCode  string    `db:"discount_code"`
	ShippingName  string    `db:"shipping_name"`
	ShippingAddr  string    `db:"shipping_addr"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type OrderItem struct {
	ID          string `db:"id"`
	OrderID     string `db:"order_id"`
	ProductID   string `db:"product_id"`
	VendorID    string `db:"vendor_id"`
	ProductName string `db:"product_name"`
	PriceCents  int64  `db:"price_cents"`
	Quantity    int    `db:"quantity"`
}

// OrderSummary is an order joined with its customer, the admin list shape.
type OrderSummary struct {
	Order
	CustomerName  string `db:"customer_name"`
	CustomerEmail string `db:"customer_email"`
}

const orderSummarySelect = `
	SELECT o.*, u.name AS customer_name, u.email AS customer_email
	FROM orders o
	JOIN users u ON u.id = o.user_id`

// NewOrder is a checkout result ready to persist. Items must already carry
// the price the customer saw; prices are copied, never re-read, so later
// product edits do not rewrite history.
type NewOrder struct {
	UserID        string
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	DiscountCode  string
	ShippingName  string
	ShippingAddr  string
	Items         []NewOrderItem
}

type NewOrderItem struct {
	ProductID   string
	VendorID    string
	ProductName string
	PriceCents  int64
	Quantity    int
}

// CreateOrder persists the order header and its items and reserves stock
// for every line. Run inside WithTx so a stock shortfall rolls back the
// whole order.
func (q *Queries) CreateOrder(ctx context.Context, o NewOrder) (Order, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO orders (id, number, user_id, status, subtotal_cents, discount_cents,
		                    total_cents, discount_code, shipping_name, shipping_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *`,
		id.NewULID(), uuid.NewString(), o.UserID, OrderPending,
		o.SubtotalCents, o.DiscountCents, o.TotalCents, o.DiscountCode,
		o.ShippingName, o.ShippingAddr)
	if err != nil {
		return Order{}, err
	}
	order, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Order])
	if err != nil {
		return Order{}, err
	}

	for _, item := range o.Items {
		if err := q.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return Order{}, err
		}
		_, err := q.db.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, vendor_id, product_name, price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id.NewULID(), order.ID, item.ProductID, item.VendorID,
			item.ProductName, item.PriceCents, item.Quantity)
		if err != nil {
			return Order{}, err
		}
	}
	return order, nil
}

func (q *Queries) FindOrder(ctx context.Context, orderID string) (OrderSummary, error) {
	rows, err := q.db.Query(ctx, orderSummarySelect+` WHERE o.id = $1`, orderID)
	if err != nil {
		return OrderSummary{}, err
	}
	o, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[OrderSummary])
	return o, notFound(err)
}

// FindOrderForUser scopes the lookup to the owning customer so one user
// cannot read another's order by guessing identifiers.
func (q *Queries) FindOrderForUser(ctx context.Context, orderID, userID string) (Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID)
	if err != nil {
		return Order{}, err
	}
	o, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Order])
	return o, notFound(err)
}

func (q *Queries) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM order_items WHERE order_id = $1 ORDER BY product_name`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderItem])
}

func (q *Queries) OrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Order])
}

// OrdersByVendor lists orders that contain at least one of the vendor's
// items, newest first.
func (q *Queries) OrdersByVendor(ctx context.Context, vendorID string, limit int) ([]OrderSummary, error) {
	rows, err := q.db.Query(ctx, orderSummarySelect+`
		WHERE EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.vendor_id = $1)
		ORDER BY o.created_at DESC
		LIMIT $2`,
		vendorID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderSummary])
}

// FindOrderForVendor returns the order only when it contains the vendor's
// items; the vendor order view must not leak other vendors' orders.
func (q *Queries) FindOrderForVendor(ctx context.Context, orderID, vendorID string) (OrderSummary, error) {
	rows, err := q.db.Query(ctx, orderSummarySelect+`
		WHERE o.id = $1
		AND EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.vendor_id = $2)`,
		orderID, vendorID)
	if err != nil {
		return OrderSummary{}, err
	}
	o, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[OrderSummary])
	return o, notFound(err)
}

// VendorOrderItems returns only the vendor's own lines of an order.
func (q *Queries) VendorOrderItems(ctx context.Context, orderID, vendorID string) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT * FROM order_items
		WHERE order_id = $1 AND vendor_id = $2
		ORDER BY product_name`,
		orderID, vendorID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderItem])
}

func (q *Queries) ListOrders(ctx context.Context, status string, limit, offset int) ([]OrderSummary, error) {
	sql := orderSummarySelect
	args := []any{limit, offset}
	if status != "" {
		args = append(args, status)
		sql += ` WHERE o.status = $3`
	}
	sql += ` ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderSummary])
}

// AllOrders lists every order, oldest first, for CSV export.
func (q *Queries) AllOrders(ctx context.Context) ([]OrderSummary, error) {
	rows, err := q.db.Query(ctx, orderSummarySelect+` ORDER BY o.created_at`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderSummary])
}

func (q *Queries) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n)
	return n, err
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
