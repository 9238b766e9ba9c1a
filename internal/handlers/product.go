package handlers

import (
	"errors"
	"strconv"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
)

func init() {
	registerViews(map[string]string{
		"product/show": `
<h1>{{.Data.Product.Name}}</h1>
<p>Sold by {{.Data.Product.VendorName}}</p>
<p>{{money .Data.Product.PriceCents}}</p>
<p>{{.Data.Product.Description}}</p>
{{if gt .Data.Product.Stock 0}}
<form method="POST" action="/cart/add">
<input type="hidden" name="_token" value="{{.CSRF}}">
<input type="hidden" name="product_id" value="{{.Data.Product.ID}}">
<input type="hidden" name="vendor_id" value="{{.Data.Product.VendorID}}">
<input type="number" name="quantity" value="1" min="1" max="{{.Data.Product.Stock}}">
<button type="submit">Add to cart</button>
</form>
{{else}}<p>Out of stock</p>{{end}}
<h2>Reviews</h2>
<ul>
{{range .Data.Reviews}}<li><strong>{{.UserName}}</strong> ({{.Rating}}/5): {{.Body}}</li>{{else}}<li>No reviews yet.</li>{{end}}
</ul>
{{if .UserName}}
<form method="POST" action="/product/review/{{.Data.Product.ID}}">
<input type="hidden" name="_token" value="{{.CSRF}}">
<select name="rating">{{range .Data.Ratings}}<option value="{{.}}">{{.}}</option>{{end}}</select>
<textarea name="body" placeholder="Your review"></textarea>
<button type="submit">Post review</button>
</form>
{{end}}
<h2>Related</h2>
<ul>
{{range .Data.Related}}<li><a href="/product/{{.ID}}">{{.Name}}</a> — {{money .PriceCents}}</li>{{end}}
</ul>`,
		"product/list": `
<h1>All products</h1>
<ul>
{{range .Data.Products}}<li><a href="/product/{{.ID}}">{{.Name}}</a> by {{.VendorName}} — {{money .PriceCents}}</li>{{else}}<li>No products yet.</li>{{end}}
</ul>
{{if .Data.NextPage}}<a href="/products?page={{.Data.NextPage}}">Next page</a>{{end}}`,
	})
}

// Products serves product pages, the catalogue list, and review posting.
type Products struct {
	queries  *repository.Queries
	identity Identity
}

// NewProducts creates the product controller.
func NewProducts(queries *repository.Queries, identity Identity) *Products {
	return &Products{queries: queries, identity: identity}
}

// Routes declares product routes; only review posting needs a login.
func (h *Products) Routes(r *dispatch.Router) {
	r.GET("/product/{id}", h.show)
	r.GET("/products", h.list)
	r.POST("/product/review/{id}", h.review, dispatch.CapabilityAuthenticated)
}

func (h *Products) userName(c *dispatch.Context) string {
	if user, ok := h.identity.CurrentUser(c); ok {
		return user.Name
	}
	return ""
}

func (h *Products) show(c *dispatch.Context) (*dispatch.Response, error) {
	product, err := h.queries.FindProduct(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	reviews, err := h.queries.ProductReviews(c.Context(), product.ID)
	if err != nil {
		return nil, err
	}

	var related []repository.ProductListing
	if product.CategoryID != nil {
		related, err = h.queries.RelatedProducts(c.Context(), product.ID, *product.CategoryID, 4)
		if err != nil {
			return nil, err
		}
	}

	return renderAs(c, "product/show", product.Name, h.userName(c), map[string]any{
		"Product": product,
		"Reviews": reviews,
		"Related": related,
		"Ratings": []int{5, 4, 3, 2, 1},
	}), nil
}

func (h *Products) list(c *dispatch.Context) (*dispatch.Response, error) {
	pageNum := page(c)
	products, err := h.queries.ListProducts(c.Context(), repository.ProductFilter{
		Sort:       "created_at",
		Descending: true,
		Limit:      defaultPageSize + 1, // one extra to detect a next page
		Offset:     offset(pageNum),
	})
	if err != nil {
		return nil, err
	}

	nextPage := 0
	if len(products) > defaultPageSize {
		products = products[:defaultPageSize]
		nextPage = pageNum + 1
	}

	return renderAs(c, "product/list", "Products", h.userName(c), map[string]any{
		"Products": products,
		"NextPage": nextPage,
	}), nil
}

func (h *Products) review(c *dispatch.Context) (*dispatch.Response, error) {
	user, ok := h.identity.CurrentUser(c)
	if !ok {
		return dispatch.SeeOther("/login"), nil
	}

	productID := c.Param("id")
	if _, err := h.queries.FindProduct(c.Context(), productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	rating, err := strconv.Atoi(c.Form("rating"))
	if err != nil || rating < 1 || rating > 5 {
		c.SetFlash(dispatch.FlashError, "Rating must be between 1 and 5")
		return dispatch.SeeOther("/product/" + productID), nil
	}

	body := sanitizer.Plain(c.Form("body"))
	if body == "" {
		c.SetFlash(dispatch.FlashError, "Review text is required")
		return dispatch.SeeOther("/product/" + productID), nil
	}

	if _, err := h.queries.CreateReview(c.Context(), productID, user.ID, rating, body); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Thanks for your review!")
	return dispatch.SeeOther("/product/" + productID), nil
}
