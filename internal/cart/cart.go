// Package cart implements the shopping cart: items grouped per vendor,
// held in the visitor's session rather than the database. All arithmetic
// is in cents.
package cart

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// sessionKey is where the serialized cart lives inside session values.
const sessionKey = "cart"

var (
	ErrNotInCart     = errors.New("cart: product not in cart")
	ErrOutOfStock    = errors.New("cart: insufficient stock")
	ErrEmptyCart     = errors.New("cart: cart is empty")
	ErrDecodeFailure = errors.New("cart: stored cart is unreadable")
)

// Item is a snapshot of a product at the moment it was added. The price
// is what checkout charges; it does not track later catalogue edits.
type Item struct {
	ProductID   string `json:"product_id"`
	VendorID    string `json:"vendor_id"`
	ProductName string `json:"product_name"`
	PriceCents  int64  `json:"price_cents"`
	Quantity    int    `json:"quantity"`
	ImagePath   string `json:"image_path,omitempty"`
}

// VendorGroup is the slice of one vendor's items plus its subtotal,
// the shape cart pages render.
type VendorGroup struct {
	VendorID      string `json:"vendor_id"`
	VendorName    string `json:"vendor_name"`
	Items         []Item `json:"items"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// Cart is the session-held cart: items keyed per vendor, plus the
// discount code the visitor applied, if any.
type Cart struct {
	// Vendors maps vendor ID to that vendor's items keyed by product ID.
	Vendors      map[string]map[string]Item `json:"vendors,omitempty"`
	VendorNames  map[string]string          `json:"vendor_names,omitempty"`
	DiscountCode string                     `json:"discount_code,omitempty"`
}

// Totals is the cart bottom line after an optional discount.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
	ItemCount     int   `json:"item_count"`
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{
		Vendors:     make(map[string]map[string]Item),
		VendorNames: make(map[string]string),
	}
}

// Add puts quantity units of the product into its vendor's cart, merging
// with an existing line. available is the product's current stock; the
// merged quantity may not exceed it.
func (c *Cart) Add(item Item, vendorName string, available int) error {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if c.Vendors == nil {
		c.Vendors = make(map[string]map[string]Item)
	}
	if c.VendorNames == nil {
		c.VendorNames = make(map[string]string)
	}

	lines := c.Vendors[item.VendorID]
	if lines == nil {
		lines = make(map[string]Item)
		c.Vendors[item.VendorID] = lines
	}

	quantity := item.Quantity
	if existing, ok := lines[item.ProductID]; ok {
		quantity += existing.Quantity
	}
	if quantity > available {
		return ErrOutOfStock
	}

	item.Quantity = quantity
	lines[item.ProductID] = item
	c.VendorNames[item.VendorID] = vendorName
	return nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(vendorID, productID string, quantity int) error {
	if quantity <= 0 {
		return c.Remove(vendorID, productID)
	}
	lines, ok := c.Vendors[vendorID]
	if !ok {
		return ErrNotInCart
	}
	item, ok := lines[productID]
	if !ok {
		return ErrNotInCart
	}
	item.Quantity = quantity
	lines[productID] = item
	return nil
}

// Remove drops a line; an emptied vendor group disappears with it.
func (c *Cart) Remove(vendorID, productID string) error {
	lines, ok := c.Vendors[vendorID]
	if !ok {
		return ErrNotInCart
	}
	if _, ok := lines[productID]; !ok {
		return ErrNotInCart
	}
	delete(lines, productID)
	if len(lines) == 0 {
		delete(c.Vendors, vendorID)
		delete(c.VendorNames, vendorID)
	}
	return nil
}

// Clear empties the cart and forgets any applied discount.
func (c *Cart) Clear() {
	c.Vendors = make(map[string]map[string]Item)
	c.VendorNames = make(map[string]string)
	c.DiscountCode = ""
}

// IsEmpty reports whether the cart holds no items.
func (c *Cart) IsEmpty() bool {
	for _, lines := range c.Vendors {
		if len(lines) > 0 {
			return false
		}
	}
	return true
}

// ItemCount is the total unit count across all vendors.
func (c *Cart) ItemCount() int {
	n := 0
	for _, lines := range c.Vendors {
		for _, item := range lines {
			n += item.Quantity
		}
	}
	return n
}

// VendorSubtotal is one vendor's subtotal in cents.
func (c *Cart) VendorSubtotal(vendorID string) int64 {
	var total int64
	for _, item := range c.Vendors[vendorID] {
		total += item.PriceCents * int64(item.Quantity)
	}
	return total
}

// Subtotal is the whole cart's pre-discount total in cents.
func (c *Cart) Subtotal() int64 {
	var total int64
	for vendorID := range c.Vendors {
		total += c.VendorSubtotal(vendorID)
	}
	return total
}

// Groups returns the cart as vendor groups in stable order (sorted by
// vendor name, then ID) with lines sorted by product name.
func (c *Cart) Groups() []VendorGroup {
	groups := make([]VendorGroup, 0, len(c.Vendors))
	for vendorID, lines := range c.Vendors {
		g := VendorGroup{
			VendorID:   vendorID,
			VendorName: c.VendorNames[vendorID],
			Items:      make([]Item, 0, len(lines)),
		}
		for _, item := range lines {
			g.Items = append(g.Items, item)
			g.SubtotalCents += item.PriceCents * int64(item.Quantity)
		}
		sort.Slice(g.Items, func(i, j int) bool {
			if g.Items[i].ProductName != g.Items[j].ProductName {
				return g.Items[i].ProductName < g.Items[j].ProductName
			}
			return g.Items[i].ProductID < g.Items[j].ProductID
		})
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].VendorName != groups[j].VendorName {
			return groups[i].VendorName < groups[j].VendorName
		}
		return groups[i].VendorID < groups[j].VendorID
	})
	return groups
}

// Totals computes the bottom line. The discount, when present and valid
// at now, is taken per vendor subtotal and summed, so a fixed discount is
// capped within each vendor's goods.
func (c *Cart) Totals(d *repository.Discount, now time.Time) Totals {
	t := Totals{
		SubtotalCents: c.Subtotal(),
		ItemCount:     c.ItemCount(),
	}
	if d != nil && d.Valid(now) {
		for vendorID := range c.Vendors {
			t.DiscountCents += d.Amount(c.VendorSubtotal(vendorID))
		}
	}
	t.TotalCents = t.SubtotalCents - t.DiscountCents
	return t
}

// OrderItems flattens the cart into order lines for checkout, in the
// same stable order as Groups.
func (c *Cart) OrderItems() []repository.NewOrderItem {
	var items []repository.NewOrderItem
	for _, g := range c.Groups() {
		for _, item := range g.Items {
			items = append(items, repository.NewOrderItem{
				ProductID:   item.ProductID,
				VendorID:    item.VendorID,
				ProductName: item.ProductName,
				PriceCents:  item.PriceCents,
				Quantity:    item.Quantity,
			})
		}
	}
	return items
}

// FromSession decodes the cart stored in the session, returning an empty
// cart when none exists. Session stores round-trip values through JSON,
// so the stored form may be either the concrete type or a decoded map.
func FromSession(s *session.Session) (*Cart, error) {
	if s == nil {
		return New(), nil
	}
	raw, ok := s.GetValue(sessionKey)
	if !ok {
		return New(), nil
	}
	switch v := raw.(type) {
	case *Cart:
		return v, nil
	default:
		buf, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Join(ErrDecodeFailure, err)
		}
		c := New()
		if err := json.Unmarshal(buf, c); err != nil {
			return nil, errors.Join(ErrDecodeFailure, err)
		}
		if c.Vendors == nil {
			c.Vendors = make(map[string]map[string]Item)
		}
		if c.VendorNames == nil {
			c.VendorNames = make(map[string]string)
		}
		return c, nil
	}
}

// Save writes the cart back into the session.
func Save(s *session.Session, c *Cart) {
	if s == nil {
		return
	}
	s.SetValue(sessionKey, c)
}
