package cart_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/cart"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

func widget(vendorID string, price int64, qty int) cart.Item {
	return cart.Item{
		ProductID:   "prod-" + vendorID,
		VendorID:    vendorID,
		ProductName: "Widget " + vendorID,
		PriceCents:  price,
		Quantity:    qty,
	}
}

func TestCartAdd(t *testing.T) {
	t.Parallel()

	t.Run("merges quantities per product", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 1_000, 2), "Acme", 10))
		require.NoError(t, c.Add(widget("v1", 1_000, 3), "Acme", 10))

		require.Equal(t, 5, c.ItemCount())
		require.Equal(t, int64(5_000), c.Subtotal())
	})

	t.Run("rejects quantity beyond stock", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 1_000, 2), "Acme", 3))
		require.ErrorIs(t, c.Add(widget("v1", 1_000, 2), "Acme", 3), cart.ErrOutOfStock)

		// The failed add must not change the cart.
		require.Equal(t, 2, c.ItemCount())
	})

	t.Run("defaults quantity to one", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 500, 0), "Acme", 5))
		require.Equal(t, 1, c.ItemCount())
	})

	t.Run("groups items per vendor", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 1_000, 1), "Acme", 5))
		require.NoError(t, c.Add(widget("v2", 2_000, 1), "Bolt", 5))

		groups := c.Groups()
		require.Len(t, groups, 2)
		require.Equal(t, "Acme", groups[0].VendorName)
		require.Equal(t, int64(1_000), groups[0].SubtotalCents)
		require.Equal(t, "Bolt", groups[1].VendorName)
		require.Equal(t, int64(2_000), groups[1].SubtotalCents)
	})
}

func TestCartUpdateAndRemove(t *testing.T) {
	t.Parallel()

	t.Run("update sets quantity", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		item := widget("v1", 1_000, 2)
		require.NoError(t, c.Add(item, "Acme", 10))
		require.NoError(t, c.UpdateQuantity(item.VendorID, item.ProductID, 7))
		require.Equal(t, 7, c.ItemCount())
	})

	t.Run("update to zero removes the line", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		item := widget("v1", 1_000, 2)
		require.NoError(t, c.Add(item, "Acme", 10))
		require.NoError(t, c.UpdateQuantity(item.VendorID, item.ProductID, 0))
		require.True(t, c.IsEmpty())
	})

	t.Run("removing last line drops the vendor group", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		item := widget("v1", 1_000, 1)
		require.NoError(t, c.Add(item, "Acme", 10))
		require.NoError(t, c.Remove(item.VendorID, item.ProductID))
		require.Empty(t, c.Groups())
	})

	t.Run("unknown line is ErrNotInCart", func(t *testing.T) {
		t.Parallel()

		c := cart.New()
		require.ErrorIs(t, c.Remove("v1", "nope"), cart.ErrNotInCart)
		require.ErrorIs(t, c.UpdateQuantity("v1", "nope", 2), cart.ErrNotInCart)
	})
}

func TestCartTotals(t *testing.T) {
	t.Parallel()

	now := time.Now()

	newCart := func(t *testing.T) *cart.Cart {
		t.Helper()
		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 10_000, 1), "Acme", 5))
		require.NoError(t, c.Add(widget("v2", 2_000, 2), "Bolt", 5))
		return c
	}

	t.Run("no discount", func(t *testing.T) {
		t.Parallel()

		tot := newCart(t).Totals(nil, now)
		require.Equal(t, int64(14_000), tot.SubtotalCents)
		require.Zero(t, tot.DiscountCents)
		require.Equal(t, int64(14_000), tot.TotalCents)
		require.Equal(t, 3, tot.ItemCount)
	})

	t.Run("percentage applies across vendors", func(t *testing.T) {
		t.Parallel()

		d := &repository.Discount{Type: repository.DiscountPercentage, Value: 10, Active: true}
		tot := newCart(t).Totals(d, now)
		require.Equal(t, int64(1_400), tot.DiscountCents)
		require.Equal(t, int64(12_600), tot.TotalCents)
	})

	t.Run("fixed discount caps per vendor subtotal", func(t *testing.T) {
		t.Parallel()

		// 5000 off each vendor: v1 gives full 5000, v2 caps at 4000.
		d := &repository.Discount{Type: repository.DiscountFixed, Value: 5_000, Active: true}
		tot := newCart(t).Totals(d, now)
		require.Equal(t, int64(9_000), tot.DiscountCents)
		require.Equal(t, int64(5_000), tot.TotalCents)
	})

	t.Run("invalid discount is ignored", func(t *testing.T) {
		t.Parallel()

		d := &repository.Discount{Type: repository.DiscountPercentage, Value: 10, Active: false}
		tot := newCart(t).Totals(d, now)
		require.Zero(t, tot.DiscountCents)
	})
}

func TestCartSessionRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("empty session yields empty cart", func(t *testing.T) {
		t.Parallel()

		sess := session.New("id", "token", time.Now().Add(time.Hour))
		c, err := cart.FromSession(sess)
		require.NoError(t, err)
		require.True(t, c.IsEmpty())
	})

	t.Run("same-process round trip", func(t *testing.T) {
		t.Parallel()

		sess := session.New("id", "token", time.Now().Add(time.Hour))
		c := cart.New()
		require.NoError(t, c.Add(widget("v1", 1_000, 2), "Acme", 10))
		cart.Save(sess, c)

		got, err := cart.FromSession(sess)
		require.NoError(t, err)
		require.Equal(t, 2, got.ItemCount())
	})

	t.Run("json-decoded map round trip", func(t *testing.T) {
		t.Parallel()

		// A Redis-backed store hands values back as generic maps.
		sess := session.New("id", "token", time.Now().Add(time.Hour))
		sess.SetValue("cart", map[string]any{
			"vendors": map[string]any{
				"v1": map[string]any{
					"p1": map[string]any{
						"product_id":   "p1",
						"vendor_id":    "v1",
						"product_name": "Widget",
						"price_cents":  float64(1_000),
						"quantity":     float64(2),
					},
				},
			},
			"vendor_names": map[string]any{"v1": "Acme"},
		})

		got, err := cart.FromSession(sess)
		require.NoError(t, err)
		require.Equal(t, 2, got.ItemCount())
		require.Equal(t, int64(2_000), got.Subtotal())
		require.Equal(t, "Acme", got.Groups()[0].VendorName)
	})
}
