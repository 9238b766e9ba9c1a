package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bazaarlabs/bazaar/internal/cart"
	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// API serves the JSON endpoints under /api. Catalog reads authenticate
// with a bearer API key; the cart endpoints act on the caller's session
// cart, same as the storefront XHR, and always answer JSON.
type API struct {
	queries *repository.Queries
}

// NewAPI creates the API controller.
func NewAPI(queries *repository.Queries) *API {
	return &API{queries: queries}
}

// Routes declares the API routes. All endpoints are open at the router
// level; the catalog handlers enforce the bearer key themselves.
func (h *API) Routes(r *dispatch.Router) {
	r.GET("/api/products", h.listProducts)
	r.GET("/api/products/{id}", h.showProduct)
	r.GET("/api/vendors", h.listVendors)
	r.GET("/api/vendors/{id}", h.showVendor)
	r.GET("/api/vendors/{id}/products", h.vendorProducts)

	r.POST("/api/cart/add", h.cartAdd)
	r.PUT("/api/cart/update", h.cartUpdate)
	r.POST("/api/cart/remove", h.cartRemove)
	r.GET("/api/cart", h.cartShow)
}

// apiProduct is the wire shape of a catalog product.
type apiProduct struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	VendorName  string    `json:"vendor_name"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	ImagePath   string    `json:"image_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// apiVendor is the wire shape of a vendor's public profile.
type apiVendor struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"business_name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Website      string    `json:"website"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAPIProduct(p repository.ProductListing) apiProduct {
	return apiProduct{
		ID:          p.ID,
		VendorID:    p.VendorID,
		VendorName:  p.VendorName,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		ImagePath:   p.ImagePath,
		CreatedAt:   p.CreatedAt,
	}
}

func toAPIProducts(in []repository.ProductListing) []apiProduct {
	out := make([]apiProduct, 0, len(in))
	for _, p := range in {
		out = append(out, toAPIProduct(p))
	}
	return out
}

func toAPIVendor(v repository.Vendor) apiVendor {
	return apiVendor{
		ID:           v.ID,
		BusinessName: v.BusinessName,
		Slug:         v.Slug,
		Description:  v.Description,
		Website:      v.Website,
		CreatedAt:    v.CreatedAt,
	}
}

// apiData wraps a successful payload in the response envelope.
func apiData(v any) *dispatch.Response {
	return dispatch.JSON(http.StatusOK, map[string]any{"data": v})
}

// apiError answers a failed API call.
func apiError(status int, message string) *dispatch.Response {
	return dispatch.JSON(status, map[string]any{"error": message})
}

// authenticate resolves the bearer API key. A non-nil response means the
// request is already answered and the handler must return it as-is.
func (h *API) authenticate(c *dispatch.Context) (*dispatch.Response, error) {
	header := c.Request().Header("Authorization")
	if header == "" {
		return apiError(http.StatusUnauthorized, "No API key provided"), nil
	}

	key := strings.TrimPrefix(header, "Bearer ")
	if _, err := h.queries.ValidateAPIKey(c.Context(), key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apiError(http.StatusUnauthorized, "Invalid API key"), nil
		}
		return nil, err
	}
	return nil, nil
}

func (h *API) listProducts(c *dispatch.Context) (*dispatch.Response, error) {
	if denied, err := h.authenticate(c); denied != nil || err != nil {
		return denied, err
	}

	products, err := h.queries.ListProducts(c.Context(), repository.ProductFilter{
		Sort:       "created_at",
		Descending: true,
		Limit:      defaultPageSize,
		Offset:     offset(page(c)),
	})
	if err != nil {
		return nil, err
	}
	return apiData(toAPIProducts(products)), nil
}

func (h *API) showProduct(c *dispatch.Context) (*dispatch.Response, error) {
	if denied, err := h.authenticate(c); denied != nil || err != nil {
		return denied, err
	}

	product, err := h.queries.FindProduct(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apiError(http.StatusNotFound, "Product not found"), nil
		}
		return nil, err
	}
	if !product.Active {
		return apiError(http.StatusNotFound, "Product not found"), nil
	}
	return apiData(toAPIProduct(product)), nil
}

func (h *API) listVendors(c *dispatch.Context) (*dispatch.Response, error) {
	if denied, err := h.authenticate(c); denied != nil || err != nil {
		return denied, err
	}

	vendors, err := h.queries.ListVendors(c.Context())
	if err != nil {
		return nil, err
	}
	out := make([]apiVendor, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, toAPIVendor(v))
	}
	return apiData(out), nil
}

func (h *API) showVendor(c *dispatch.Context) (*dispatch.Response, error) {
	if denied, err := h.authenticate(c); denied != nil || err != nil {
		return denied, err
	}

	vendor, err := h.queries.FindVendor(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apiError(http.StatusNotFound, "Vendor not found"), nil
		}
		return nil, err
	}
	return apiData(toAPIVendor(vendor)), nil
}

func (h *API) vendorProducts(c *dispatch.Context) (*dispatch.Response, error) {
	if denied, err := h.authenticate(c); denied != nil || err != nil {
		return denied, err
	}

	vendor, err := h.queries.FindVendor(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apiError(http.StatusNotFound, "Vendor not found"), nil
		}
		return nil, err
	}

	products, err := h.queries.ProductsByVendor(c.Context(), vendor.ID)
	if err != nil {
		return nil, err
	}
	return apiData(toAPIProducts(products)), nil
}

// loadCart reads the session cart, falling back to a fresh cart on decode
// failure.
func (h *API) loadCart(c *dispatch.Context) *cart.Cart {
	current, err := cart.FromSession(c.Session())
	if err != nil {
		c.LogWarn("cart decode failed, starting fresh", "error", err)
		return cart.New()
	}
	return current
}

// cartPayload is the cart state returned from every cart endpoint.
func (h *API) cartPayload(c *dispatch.Context, current *cart.Cart) map[string]any {
	var discount *repository.Discount
	if current.DiscountCode != "" {
		if d, err := h.queries.FindDiscountByCode(c.Context(), current.DiscountCode); err == nil {
			discount = &d
		}
	}
	return map[string]any{
		"groups": current.Groups(),
		"totals": current.Totals(discount, time.Now()),
	}
}

func (h *API) cartShow(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	return apiData(h.cartPayload(c, current)), nil
}

func (h *API) cartAdd(c *dispatch.Context) (*dispatch.Response, error) {
	productID := c.Form("product_id")
	if productID == "" {
		return apiError(http.StatusBadRequest, "Missing required fields"), nil
	}

	product, err := h.queries.FindProduct(c.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apiError(http.StatusNotFound, "Product not found"), nil
		}
		return nil, err
	}
	if !product.Active {
		return apiError(http.StatusNotFound, "Product not found"), nil
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
			return apiError(http.StatusConflict, "Not enough stock available"), nil
		}
		return nil, err
	}
	cart.Save(c.Session(), current)

	return apiData(h.cartPayload(c, current)), nil
}

func (h *API) cartUpdate(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	err := current.UpdateQuantity(c.Form("vendor_id"), c.Form("product_id"), formInt(c, "quantity", 0))
	if err != nil {
		return apiError(http.StatusNotFound, "Item not in cart"), nil
	}
	cart.Save(c.Session(), current)
	return apiData(h.cartPayload(c, current)), nil
}

func (h *API) cartRemove(c *dispatch.Context) (*dispatch.Response, error) {
	current := h.loadCart(c)
	if err := current.Remove(c.Form("vendor_id"), c.Form("product_id")); err != nil {
		return apiError(http.StatusNotFound, "Item not in cart"), nil
	}
	cart.Save(c.Session(), current)
	return apiData(h.cartPayload(c, current)), nil
}
