package handlers

import (
	"errors"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

func init() {
	registerViews(map[string]string{
		"marketplace/home": `
<h1>Welcome to Bazaar</h1>
<h2>Featured shops</h2>
<ul>
{{range .Data.Featured}}<li><a href="/shop/{{.Slug}}">{{.BusinessName}}</a></li>{{else}}<li>No featured shops yet.</li>{{end}}
</ul>
<h2>Latest products</h2>
<ul>
{{range .Data.Latest}}<li><a href="/product/{{.ID}}">{{.Name}}</a> by {{.VendorName}} — {{money .PriceCents}}</li>{{end}}
</ul>`,
		"marketplace/category": `
<h1>{{.Data.Category.Name}}</h1>
<ul>
{{range .Data.Products}}<li><a href="/product/{{.ID}}">{{.Name}}</a> by {{.VendorName}} — {{money .PriceCents}}</li>{{else}}<li>Nothing in this category yet.</li>{{end}}
</ul>`,
		"marketplace/shop": `
<h1>{{.Data.Vendor.BusinessName}}</h1>
{{with .Data.Vendor.Description}}<div>{{.}}</div>{{end}}
<ul>
{{range .Data.Products}}<li><a href="/product/{{.ID}}">{{.Name}}</a> — {{money .PriceCents}}</li>{{else}}<li>This shop has no products yet.</li>{{end}}
</ul>`,
		"marketplace/search": `
<h1>Search</h1>
<form method="GET" action="/search">
<input type="search" name="q" value="{{.Data.Query}}" placeholder="Search products">
<button type="submit">Search</button>
</form>
<ul>
{{range .Data.Products}}<li><a href="/product/{{.ID}}">{{.Name}}</a> by {{.VendorName}} — {{money .PriceCents}}</li>{{else}}<li>No results.</li>{{end}}
</ul>`,
	})
}

// Marketplace serves the public storefront: home, category browsing, and
// search.
type Marketplace struct {
	queries  *repository.Queries
	identity Identity
}

// NewMarketplace creates the storefront controller.
func NewMarketplace(queries *repository.Queries, identity Identity) *Marketplace {
	return &Marketplace{queries: queries, identity: identity}
}

// Routes declares the storefront routes; all are open.
func (h *Marketplace) Routes(r *dispatch.Router) {
	r.GET("/", h.home)
	r.GET("/marketplace", h.home)
	r.GET("/marketplace/category/{category}", h.category)
	r.GET("/shop/{slug}", h.shop)
	r.GET("/search", h.search)
}

func (h *Marketplace) userName(c *dispatch.Context) string {
	if user, ok := h.identity.CurrentUser(c); ok {
		return user.Name
	}
	return ""
}

func (h *Marketplace) home(c *dispatch.Context) (*dispatch.Response, error) {
	featured, err := h.queries.FeaturedVendors(c.Context())
	if err != nil {
		return nil, err
	}
	latest, err := h.queries.ListProducts(c.Context(), repository.ProductFilter{
		Sort:       "created_at",
		Descending: true,
		Limit:      defaultPageSize,
	})
	if err != nil {
		return nil, err
	}

	return renderAs(c, "marketplace/home", "Marketplace", h.userName(c), map[string]any{
		"Featured": featured,
		"Latest":   latest,
	}), nil
}

func (h *Marketplace) category(c *dispatch.Context) (*dispatch.Response, error) {
	category, err := h.queries.FindCategoryBySlug(c.Context(), c.Param("category"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	products, err := h.queries.ListProducts(c.Context(), repository.ProductFilter{
		CategoryID: category.ID,
		Sort:       "created_at",
		Descending: true,
		Limit:      defaultPageSize,
		Offset:     offset(page(c)),
	})
	if err != nil {
		return nil, err
	}

	return renderAs(c, "marketplace/category", category.Name, h.userName(c), map[string]any{
		"Category": category,
		"Products": products,
	}), nil
}

func (h *Marketplace) shop(c *dispatch.Context) (*dispatch.Response, error) {
	vendor, err := h.queries.FindVendorBySlug(c.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	products, err := h.queries.ListProducts(c.Context(), repository.ProductFilter{
		VendorID:   vendor.ID,
		Sort:       "created_at",
		Descending: true,
		Limit:      defaultPageSize,
		Offset:     offset(page(c)),
	})
	if err != nil {
		return nil, err
	}

	return renderAs(c, "marketplace/shop", vendor.BusinessName, h.userName(c), map[string]any{
		"Vendor":   vendor,
		"Products": products,
	}), nil
}

func (h *Marketplace) search(c *dispatch.Context) (*dispatch.Response, error) {
	query := c.Query("q")

	var products []repository.ProductListing
	if query != "" {
		var err error
		products, err = h.queries.ListProducts(c.Context(), repository.ProductFilter{
			Search: query,
			Limit:  defaultPageSize,
			Offset: offset(page(c)),
		})
		if err != nil {
			return nil, err
		}
	}

	return renderAs(c, "marketplace/search", "Search", h.userName(c), map[string]any{
		"Query":    query,
		"Products": products,
	}), nil
}
