package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarlabs/bazaar/internal/cart"
	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/db"
	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
)

func init() {
	registerViews(map[string]string{
		"cart/show": `
<h1>Shopping cart</h1>
{{range .Data.Groups}}
<h2>{{.VendorName}}</h2>
<ul>
{{range .Items}}
<li>{{.ProductName}} × {{.Quantity}} — {{money .PriceCents}} each
<form method="POST" action="/cart/remove">
<input type="hidden" name="_token" value="{{$.CSRF}}">
<input type="hidden" name="vendor_id" value="{{.VendorID}}">
<input type="hidden" name="product_id" value="{{.ProductID}}">
<button type="submit">Remove</button>
</form>
</li>
{{end}}
</ul>
<p>Subtotal: {{money .SubtotalCents}}</p>
{{else}}
<p>Your cart is empty.</p>
{{end}}
{{if .Data.Groups}}
<form method="POST" action="/cart/discount">
<input type="hidden" name="_token" value="{{.CSRF}}">
<input type="text" name="code" placeholder="Discount code" value="{{.Data.DiscountCode}}">
<button type="submit">Apply</button>
</form>
<p>Total: {{money .Data.Totals.SubtotalCents}}
{{if .Data.Totals.DiscountCents}} − {{money .Data.Totals.DiscountCents}} = {{money .Data.Totals.TotalCents}}{{end}}</p>
<a href="/cart/checkout">Checkout</a>
{{end}}`,
		"cart/checkout": `
<h1>Checkout</h1>
{{range .Data.Groups}}<p>{{.VendorName}}: {{money .SubtotalCents}}</p>{{end}}
{{if .Data.Totals.DiscountCents}}<p>Discount: −{{money .Data.Totals.DiscountCents}}</p>{{end}}
<p><strong>Total: {{money .Data.Totals.TotalCents}}</strong></p>
<form method="POST" action="/cart/process-checkout">
<input type="hidden" name="_token" value="{{.CSRF}}">
<input type="text" name="shipping_name" placeholder="Full name" required>
<textarea name="shipping_addr" placeholder="Shipping address" required></textarea>
<button type="submit">Place order</button>
</form>`,
	})
}

// Carts serves the cart pages and the cart mutation endpoints. Mutations
// answer JSON when asked (the storefront uses XHR) and redirect back to
// the cart page otherwise.
type Carts struct {
	queries  *repository.Queries
	pool     *pgxpool.Pool
	identity Identity
}

// NewCarts creates the cart controller.
func NewCarts(queries *repository.Queries, pool *pgxpool.Pool, identity Identity) *Carts {
	return &Carts{queries: queries, pool: pool, identity: identity}
}

// Routes declares cart routes. Browsing and editing the cart is open;
// checkout requires a login.
func (h *Carts) Routes(r *dispatch.Router) {
	r.GET("/cart", h.show)
	r.POST("/cart/add", h.add)
	r.POST("/cart/update", h.update)
	r.POST("/cart/remove", h.remove)
	r.POST("/cart/discount", h.discount)
	r.GET("/cart/checkout", h.checkout, dispatch.CapabilityAuthenticated)
	r.POST("/cart/process-checkout", h.processCheckout, dispatch.CapabilityAuthenticated)
}

func (h *Carts) userName(c *dispatch.Context) string {
	if user, ok := h.identity.CurrentUser(c); ok {
		return user.Name
	}
	return ""
}

// loadCart reads the session cart, falling back to a fresh cart on decode
// failure so a corrupted session cannot wedge the storefront.
func (h *Carts) loadCart(c *dispatch.Context) *cart.Cart {
	current, err := cart.FromSession(c.Session())
	if err != nil {
		c.LogWarn("cart decode failed, starting fresh", "error", err)
		return cart.New()
	}
	return current
}

// cartDiscount resolves the cart's stored discount code, dropping codes
// that have since expired.
func (h *Carts) cartDiscount(c *dispatch.Context, current *cart.Cart) *repository.Discount {
	if current.DiscountCode == "" {
		return nil
	}
	d, err := h.queries.FindDiscountByCode(c.Context(), current.DiscountCode)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.LogError("discount lookup failed", "code", current.DiscountCode, "error", err)
		}
		current.DiscountCode = ""
		cart.Save(c.Session(), current)
		return nil
	}
	return &d
}

func (h *Carts) show(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	discount := h.cartDiscount(c, current)
	totals := current.Totals(discount, time.Now())

	if c.Request().WantsJSON() {
		return dispatch.JSON(http.StatusOK, map[string]any{
			"groups": current.Groups(),
			"totals": totals,
		}), nil
	}

	return renderAs(c, "cart/show", "Shopping Cart", h.userName(c), map[string]any{
		"Groups":       current.Groups(),
		"Totals":       totals,
		"DiscountCode": current.DiscountCode,
	}), nil
}

func (h *Carts) add(c *dispatch.Context) (*dispatch.Response, error) {
	productID := c.Form("product_id")
	if productID == "" {
		return h.mutationError(c, http.StatusBadRequest, "Missing required fields"), nil
	}

	product, err := h.queries.FindProduct(c.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.mutationError(c, http.StatusNotFound, "Product not found"), nil
		}
		return nil, err
	}
	if !product.Active {
		return h.mutationError(c, http.StatusNotFound, "Product not found"), nil
	}

	current := h.loadCart(c)
	err = current.Add(cart.Item{
		ProductID:   product.ID,
		VendorID:    product.VendorID,
		ProductName: product.Name,
		PriceCents:  product.PriceCents,
		Quantity:    formInt(c, "quantity", 1),
		ImagePath:   product.ImagePath,
	}, product.VendorName, product.Stock)
	if err != nil {
		if errors.Is(err, cart.ErrOutOfStock) {
			return h.mutationError(c, http.StatusConflict, "Not enough stock available"), nil
		}
		return nil, err
	}
	cart.Save(c.Session(), current)

	return h.mutationOK(c, current, "Added to cart")
}

func (h *Carts) update(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	err := current.UpdateQuantity(c.Form("vendor_id"), c.Form("product_id"), formInt(c, "quantity", 0))
	if err != nil {
		return h.mutationError(c, http.StatusNotFound, "Item not in cart"), nil
	}
	cart.Save(c.Session(), current)
	return h.mutationOK(c, current, "Cart updated")
}

func (h *Carts) remove(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	if err := current.Remove(c.Form("vendor_id"), c.Form("product_id")); err != nil {
		return h.mutationError(c, http.StatusNotFound, "Item not in cart"), nil
	}
	cart.Save(c.Session(), current)
	return h.mutationOK(c, current, "Item removed")
}

func (h *Carts) discount(c *dispatch.Context) (*dispatch.Response, error) {
	code := sanitizer.Plain(c.Form("code"))
	current := h.loadCart(c)

	if code == "" {
		current.DiscountCode = ""
		cart.Save(c.Session(), current)
		return h.mutationOK(c, current, "Discount removed")
	}

	if _, err := h.queries.FindDiscountByCode(c.Context(), code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return h.mutationError(c, http.StatusUnprocessableEntity, "Invalid or expired discount code"), nil
		}
		return nil, err
	}

	current.DiscountCode = code
	cart.Save(c.Session(), current)
	return h.mutationOK(c, current, "Discount applied")
}

func (h *Carts) checkout(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	if current.IsEmpty() {
		c.SetFlash(dispatch.FlashError, "Your cart is empty")
		return dispatch.SeeOther("/cart"), nil
	}

	totals := current.Totals(h.cartDiscount(c, current), time.Now())
	return renderAs(c, "cart/checkout", "Checkout", h.userName(c), map[string]any{
		"Groups": current.Groups(),
		"Totals": totals,
	}), nil
}

func (h *Carts) processCheckout(c *dispatch.Context) (*dispatch.Response, error) {
	user, ok := h.identity.CurrentUser(c)
	if !ok {
		return dispatch.SeeOther("/login"), nil
	}

	current := h.loadCart(c)
	if current.IsEmpty() {
		c.SetFlash(dispatch.FlashError, "Your cart is empty")
		return dispatch.SeeOther("/cart"), nil
	}

	shippingName := sanitizer.Plain(c.Form("shipping_name"))
	shippingAddr := sanitizer.Plain(c.Form("shipping_addr"))
	if shippingName == "" || shippingAddr == "" {
		c.SetFlash(dispatch.FlashError, "Shipping name and address are required")
		return dispatch.SeeOther("/cart/checkout"), nil
	}

	discount := h.cartDiscount(c, current)
	totals := current.Totals(discount, time.Now())

	newOrder := repository.NewOrder{
		UserID:        user.ID,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		TotalCents:    totals.TotalCents,
		DiscountCode:  current.DiscountCode,
		ShippingName:  shippingName,
		ShippingAddr:  shippingAddr,
		Items:         current.OrderItems(),
	}

	var order repository.Order
	err := db.WithTx(c.Context(), h.pool, func(tx pgx.Tx) error {
		qtx := h.queries.WithTx(tx)
		var txErr error
		order, txErr = qtx.CreateOrder(c.Context(), newOrder)
		if txErr != nil {
			return txErr
		}
		if discount != nil {
			return qtx.IncrementDiscountUsage(c.Context(), discount.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Stock ran out between the cart page and the submit.
			c.SetFlash(dispatch.FlashError, "Some items are no longer available in the requested quantity")
			return dispatch.SeeOther("/cart"), nil
		}
		return nil, err
	}

	current.Clear()
	cart.Save(c.Session(), current)

	c.SetFlash(dispatch.FlashSuccess, "Order placed! Your order number is "+order.Number)
	return dispatch.SeeOther("/account/order/" + order.ID), nil
}

// mutationOK answers a successful cart mutation: cart JSON for XHR
// callers, redirect-with-flash for plain form posts.
func (h *Carts) mutationOK(c *dispatch.Context, current *cart.Cart, message string) (*dispatch.Response, error) {
	if c.Request().WantsJSON() {
		discount := h.cartDiscount(c, current)
		return dispatch.JSON(http.StatusOK, map[string]any{
			"success": true,
			"groups":  current.Groups(),
			"totals":  current.Totals(discount, time.Now()),
		}), nil
	}
	c.SetFlash(dispatch.FlashSuccess, message)
	return redirectBack(c, "/cart"), nil
}

// mutationError answers a failed cart mutation in the caller's preferred
// shape.
func (h *Carts) mutationError(c *dispatch.Context, status int, message string) *dispatch.Response {
	if c.Request().WantsJSON() {
		return dispatch.JSON(status, map[string]any{"error": message})
	}
	c.SetFlash(dispatch.FlashError, message)
	return redirectBack(c, "/cart")
}
