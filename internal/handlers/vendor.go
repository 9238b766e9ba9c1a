package handlers

import (
	"errors"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
	"github.com/bazaarlabs/bazaar/pkg/slug"
	"github.com/bazaarlabs/bazaar/pkg/storage"
)

// maxProductImageSize bounds product image uploads.
const maxProductImageSize = 5 << 20

// reservedSlugs are path prefixes a shop slug must never shadow.
var reservedSlugs = []string{
	"admin", "account", "cart", "login", "logout", "register",
	"marketplace", "product", "products", "search", "shop", "vendor",
	"password",
}

func init() {
	registerViews(map[string]string{
		"vendor/register": `
<h1>Open your shop</h1>
<form method="POST" action="/vendor/register">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Business name <input type="text" name="business_name" value="{{.Data.BusinessName}}" required></label>
<label>Description <textarea name="description">{{.Data.Description}}</textarea></label>
<label>Contact email <input type="email" name="email" value="{{.Data.Email}}" required></label>
<label>Phone <input type="text" name="phone" value="{{.Data.Phone}}"></label>
<label>Address <input type="text" name="address" value="{{.Data.Address}}"></label>
<label>Website <input type="url" name="website" value="{{.Data.Website}}"></label>
<button type="submit">Open shop</button>
</form>`,
		"vendor/dashboard": `
<h1>{{.Data.Vendor.BusinessName}}</h1>
<p>Total sales: {{money .Data.TotalSales}}</p>
<p><a href="/vendor/products">Products</a> · <a href="/vendor/orders">Orders</a> · <a href="/vendor/settings">Settings</a></p>
<h2>Recent orders</h2>
<ul>
{{range .Data.Orders}}<li><a href="/vendor/order/{{.ID}}">{{.Number}}</a> — {{.CustomerName}} — {{.Status}}</li>{{else}}<li>No orders yet.</li>{{end}}
</ul>`,
		"vendor/products": `
<h1>My products</h1>
<p><a href="/vendor/products/create">Add a product</a></p>
<ul>
{{range .Data.Products}}<li><a href="/vendor/products/edit/{{.ID}}">{{.Name}}</a> — {{money .PriceCents}} — stock {{.Stock}}{{if not .Active}} (inactive){{end}}</li>{{else}}<li>You have no products yet.</li>{{end}}
</ul>`,
		"vendor/product_form": `
<h1>{{if .Data.Product}}Edit product{{else}}New product{{end}}</h1>
<form method="POST" enctype="multipart/form-data">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Name <input type="text" name="name" value="{{with .Data.Product}}{{.Name}}{{end}}" required></label>
<label>Category
<select name="category_id">
<option value="">None</option>
{{$selected := ""}}{{with .Data.Product}}{{with .CategoryID}}{{$selected = .}}{{end}}{{end}}
{{range .Data.Categories}}<option value="{{.ID}}"{{if eq .ID $selected}} selected{{end}}>{{.Name}}</option>{{end}}
</select>
</label>
<label>Description <textarea name="description">{{with .Data.Product}}{{.Description}}{{end}}</textarea></label>
<label>Price <input type="text" name="price" value="{{with .Data.Product}}{{money .PriceCents}}{{end}}" required></label>
<label>Stock <input type="number" name="stock" value="{{with .Data.Product}}{{.Stock}}{{else}}0{{end}}" required></label>
<label>Image <input type="file" name="image" accept="image/*"></label>
<label><input type="checkbox" name="active" value="1"{{if .Data.Product}}{{if .Data.Product.Active}} checked{{end}}{{else}} checked{{end}}> Active</label>
<button type="submit">Save</button>
</form>`,
		"vendor/settings": `
<h1>Shop settings</h1>
<p>Your shop lives at <a href="/shop/{{.Data.Vendor.Slug}}">/shop/{{.Data.Vendor.Slug}}</a></p>
<form method="POST" action="/vendor/settings">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Business name <input type="text" name="business_name" value="{{.Data.Vendor.BusinessName}}" required></label>
<label>Description <textarea name="description">{{.Data.Vendor.Description}}</textarea></label>
<label>Contact email <input type="email" name="email" value="{{.Data.Vendor.Email}}" required></label>
<label>Phone <input type="text" name="phone" value="{{.Data.Vendor.Phone}}"></label>
<label>Address <input type="text" name="address" value="{{.Data.Vendor.Address}}"></label>
<label>Website <input type="url" name="website" value="{{.Data.Vendor.Website}}"></label>
<button type="submit">Save</button>
</form>`,
		"vendor/orders": `
<h1>Shop orders</h1>
<ul>
{{range .Data.Orders}}<li><a href="/vendor/order/{{.ID}}">{{.Number}}</a> — {{.CustomerName}} — {{.Status}} — {{.CreatedAt.Format "Jan 2, 2006"}}</li>{{else}}<li>No orders yet.</li>{{end}}
</ul>`,
		"vendor/order": `
<h1>Order {{.Data.Order.Number}}</h1>
<p>Customer: {{.Data.Order.CustomerName}} ({{.Data.Order.CustomerEmail}})</p>
<p>Ships to: {{.Data.Order.ShippingName}}, {{.Data.Order.ShippingAddr}}</p>
<h2>Your items</h2>
<ul>
{{range .Data.Items}}<li>{{.ProductName}} × {{.Quantity}} — {{money .PriceCents}}</li>{{end}}
</ul>
<form method="POST" action="/vendor/order/update/{{.Data.Order.ID}}">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Status
<select name="status">
{{$current := .Data.Order.Status}}
{{range .Data.Statuses}}<option value="{{.}}"{{if eq . $current}} selected{{end}}>{{.}}</option>{{end}}
</select>
</label>
<button type="submit">Update status</button>
</form>`,
	})
}

// Vendors serves shop registration and the vendor back office.
type Vendors struct {
	queries  *repository.Queries
	identity Identity
	files    storage.Storage
}

// NewVendors creates the vendor controller. Product images upload through
// the given storage.
func NewVendors(queries *repository.Queries, identity Identity, files storage.Storage) *Vendors {
	return &Vendors{queries: queries, identity: identity, files: files}
}

// Routes declares the vendor routes. Registration only needs a signed-in
// user; everything else requires the vendor capability.
func (h *Vendors) Routes(r *dispatch.Router) {
	r.GET("/vendor/register", h.registerForm, dispatch.CapabilityAuthenticated)
	r.POST("/vendor/register", h.register, dispatch.CapabilityAuthenticated)

	r.GET("/vendor/dashboard", h.dashboard, dispatch.CapabilityVendor)
	r.GET("/vendor/settings", h.settingsForm, dispatch.CapabilityVendor)
	r.POST("/vendor/settings", h.saveSettings, dispatch.CapabilityVendor)
	r.GET("/vendor/products", h.products, dispatch.CapabilityVendor)
	r.GET("/vendor/products/create", h.createForm, dispatch.CapabilityVendor)
	r.POST("/vendor/products/create", h.create, dispatch.CapabilityVendor)
	r.GET("/vendor/products/edit/{id}", h.editForm, dispatch.CapabilityVendor)
	r.POST("/vendor/products/edit/{id}", h.edit, dispatch.CapabilityVendor)
	r.POST("/vendor/products/delete/{id}", h.delete, dispatch.CapabilityVendor)
	r.GET("/vendor/orders", h.orders, dispatch.CapabilityVendor)
	r.GET("/vendor/order/{id}", h.order, dispatch.CapabilityVendor)
	r.POST("/vendor/order/update/{id}", h.updateOrder, dispatch.CapabilityVendor)
}

// vendor resolves the signed-in user's shop. Routes behind
// CapabilityVendor always have one.
func (h *Vendors) vendor(c *dispatch.Context) (repository.User, repository.Vendor, error) {
	user, _ := h.identity.CurrentUser(c)
	vendor, err := h.queries.FindVendorByUserID(c.Context(), user.ID)
	return user, vendor, err
}

func (h *Vendors) registerForm(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)
	if user.IsVendor() {
		return dispatch.SeeOther("/vendor/dashboard"), nil
	}
	return renderAs(c, "vendor/register", "Open your shop", user.Name, map[string]any{
		"BusinessName": "", "Description": "", "Email": user.Email,
		"Phone": "", "Address": "", "Website": "",
	}), nil
}

func (h *Vendors) register(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)
	if user.IsVendor() {
		return dispatch.SeeOther("/vendor/dashboard"), nil
	}

	form := repository.NewVendor{
		UserID:       user.ID,
		BusinessName: sanitizer.Plain(c.Form("business_name")),
		Description:  sanitizer.Markup(c.Form("description")),
		Email:        sanitizer.Plain(c.Form("email")),
		Phone:        sanitizer.Plain(c.Form("phone")),
		Address:      sanitizer.Plain(c.Form("address")),
		Website:      sanitizer.Plain(c.Form("website")),
	}
	if form.BusinessName == "" || !validEmail(form.Email) {
		c.SetFlash(dispatch.FlashError, "Business name and a valid contact email are required")
		return renderAs(c, "vendor/register", "Open your shop", user.Name, map[string]any{
			"BusinessName": form.BusinessName, "Description": form.Description,
			"Email": form.Email, "Phone": form.Phone,
			"Address": form.Address, "Website": form.Website,
		}), nil
	}

	form.Slug = slug.Make(form.BusinessName, slug.MaxLength(64), slug.Reserved(reservedSlugs...))
	taken, err := h.queries.VendorSlugExists(c.Context(), form.Slug)
	if err != nil {
		return nil, err
	}
	if taken {
		form.Slug = slug.Make(form.BusinessName, slug.MaxLength(64), slug.WithSuffix(6))
	}

	if _, err := h.queries.CreateVendor(c.Context(), form); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.SetFlash(dispatch.FlashError, "You already have a shop")
			return dispatch.SeeOther("/vendor/dashboard"), nil
		}
		return nil, err
	}
	if err := h.queries.SetUserRole(c.Context(), user.ID, repository.RoleVendor); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Your shop is open for business!")
	return dispatch.SeeOther("/vendor/dashboard"), nil
}

func (h *Vendors) settingsForm(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}
	return renderAs(c, "vendor/settings", "Shop settings", user.Name, map[string]any{
		"Vendor": vendor,
	}), nil
}

// saveSettings updates the shop profile. The slug is fixed at
// registration so shop links never break.
func (h *Vendors) saveSettings(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	form := repository.NewVendor{
		UserID:       user.ID,
		BusinessName: sanitizer.Plain(c.Form("business_name")),
		Description:  sanitizer.Markup(c.Form("description")),
		Email:        sanitizer.Plain(c.Form("email")),
		Phone:        sanitizer.Plain(c.Form("phone")),
		Address:      sanitizer.Plain(c.Form("address")),
		Website:      sanitizer.Plain(c.Form("website")),
	}
	if form.BusinessName == "" || !validEmail(form.Email) {
		c.SetFlash(dispatch.FlashError, "Business name and a valid contact email are required")
		return dispatch.SeeOther("/vendor/settings"), nil
	}

	if err := h.queries.UpdateVendor(c.Context(), vendor.ID, form); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Shop settings saved")
	return dispatch.SeeOther("/vendor/settings"), nil
}

func (h *Vendors) dashboard(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	total, err := h.queries.VendorTotalSales(c.Context(), vendor.ID)
	if err != nil {
		return nil, err
	}
	recent, err := h.queries.OrdersByVendor(c.Context(), vendor.ID, 5)
	if err != nil {
		return nil, err
	}

	return renderAs(c, "vendor/dashboard", vendor.BusinessName, user.Name, map[string]any{
		"Vendor":     vendor,
		"TotalSales": total,
		"Orders":     recent,
	}), nil
}

func (h *Vendors) products(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}
	products, err := h.queries.ProductsByVendor(c.Context(), vendor.ID)
	if err != nil {
		return nil, err
	}
	return renderAs(c, "vendor/products", "My products", user.Name, map[string]any{
		"Products": products,
	}), nil
}

func (h *Vendors) createForm(c *dispatch.Context) (*dispatch.Response, error) {
	user, _, err := h.vendor(c)
	if err != nil {
		return nil, err
	}
	categories, err := h.queries.Categories(c.Context())
	if err != nil {
		return nil, err
	}
	return renderAs(c, "vendor/product_form", "New product", user.Name, map[string]any{
		"Product":    (*repository.Product)(nil),
		"Categories": categories,
	}), nil
}

// productForm reads the shared product fields; a non-empty message means
// validation failed.
func productForm(c *dispatch.Context, vendorID string) (repository.NewProduct, string) {
	name := sanitizer.Plain(c.Form("name"))
	if name == "" {
		return repository.NewProduct{}, "Product name is required"
	}
	price, ok := parseCents(c.Form("price"))
	if !ok {
		return repository.NewProduct{}, "Please enter a valid price"
	}
	stock := formInt(c, "stock", -1)
	if stock < 0 {
		return repository.NewProduct{}, "Please enter a valid stock quantity"
	}

	var categoryID *string
	if v := c.Form("category_id"); v != "" {
		categoryID = &v
	}

	return repository.NewProduct{
		VendorID:    vendorID,
		CategoryID:  categoryID,
		Name:        name,
		Description: sanitizer.Markup(c.Form("description")),
		PriceCents:  price,
		Stock:       stock,
		Active:      c.Form("active") == "1",
	}, ""
}

func (h *Vendors) create(c *dispatch.Context) (*dispatch.Response, error) {
	_, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	form, msg := productForm(c, vendor.ID)
	if msg != "" {
		c.SetFlash(dispatch.FlashError, msg)
		return dispatch.SeeOther("/vendor/products/create"), nil
	}
	form.Slug = slug.Make(form.Name, slug.MaxLength(64), slug.WithSuffix(6))

	product, err := h.queries.CreateProduct(c.Context(), form)
	if err != nil {
		return nil, err
	}

	if fh := c.Request().File("image"); fh != nil {
		if resp := h.storeImage(c, product.ID); resp != nil {
			return resp, nil
		}
	}

	c.SetFlash(dispatch.FlashSuccess, "Product created")
	return dispatch.SeeOther("/vendor/products"), nil
}

func (h *Vendors) editForm(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	product, resp, err := h.ownProduct(c, vendor.ID)
	if resp != nil || err != nil {
		return resp, err
	}
	categories, err := h.queries.Categories(c.Context())
	if err != nil {
		return nil, err
	}

	return renderAs(c, "vendor/product_form", "Edit product", user.Name, map[string]any{
		"Product":    &product.Product,
		"Categories": categories,
	}), nil
}

func (h *Vendors) edit(c *dispatch.Context) (*dispatch.Response, error) {
	_, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	product, resp, err := h.ownProduct(c, vendor.ID)
	if resp != nil || err != nil {
		return resp, err
	}

	form, msg := productForm(c, vendor.ID)
	if msg != "" {
		c.SetFlash(dispatch.FlashError, msg)
		return dispatch.SeeOther("/vendor/products/edit/" + product.ID), nil
	}
	form.Slug = product.Slug

	if err := h.queries.UpdateProduct(c.Context(), product.ID, form); err != nil {
		return nil, err
	}

	if fh := c.Request().File("image"); fh != nil {
		if resp := h.storeImage(c, product.ID); resp != nil {
			return resp, nil
		}
	}

	c.SetFlash(dispatch.FlashSuccess, "Product updated")
	return dispatch.SeeOther("/vendor/products"), nil
}

func (h *Vendors) delete(c *dispatch.Context) (*dispatch.Response, error) {
	_, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	product, resp, err := h.ownProduct(c, vendor.ID)
	if resp != nil || err != nil {
		return resp, err
	}
	if err := h.queries.DeleteProduct(c.Context(), product.ID); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Product removed")
	return dispatch.SeeOther("/vendor/products"), nil
}

// ownProduct loads the product in the path and confirms it belongs to the
// vendor; foreign products 404 rather than reveal they exist.
func (h *Vendors) ownProduct(c *dispatch.Context, vendorID string) (repository.ProductListing, *dispatch.Response, error) {
	product, err := h.queries.FindProduct(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ProductListing{}, dispatch.NotFound(), nil
		}
		return repository.ProductListing{}, nil, err
	}
	if product.VendorID != vendorID {
		return repository.ProductListing{}, dispatch.NotFound(), nil
	}
	return product, nil, nil
}

// storeImage uploads the submitted image and records its key. A rejected
// upload flashes and bounces back; the product row itself is already saved.
func (h *Vendors) storeImage(c *dispatch.Context, productID string) *dispatch.Response {
	info, err := storage.PutFile(c.Context(), h.files, c.Request().File("image"),
		storage.WithPrefix("products"),
		storage.WithACL(storage.ACLPublicRead),
		storage.WithValidation(storage.ImageOnly(), storage.MaxSize(maxProductImageSize)),
	)
	if err != nil {
		var validation *storage.FileValidationError
		if errors.As(err, &validation) || errors.Is(err, storage.ErrEmptyFile) {
			c.SetFlash(dispatch.FlashError, "Image must be a valid image file under 5 MB")
			return dispatch.SeeOther("/vendor/products/edit/" + productID)
		}
		c.LogError("product image upload failed", "product_id", productID, "error", err)
		c.SetFlash(dispatch.FlashError, "Image upload failed. Please try again.")
		return dispatch.SeeOther("/vendor/products/edit/" + productID)
	}
	if err := h.queries.UpdateProductImage(c.Context(), productID, info.Key); err != nil {
		c.LogError("product image record failed", "product_id", productID, "error", err)
	}
	return nil
}

func (h *Vendors) orders(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}
	orders, err := h.queries.OrdersByVendor(c.Context(), vendor.ID, defaultPageSize)
	if err != nil {
		return nil, err
	}
	return renderAs(c, "vendor/orders", "Shop orders", user.Name, map[string]any{
		"Orders": orders,
	}), nil
}

func (h *Vendors) order(c *dispatch.Context) (*dispatch.Response, error) {
	user, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	order, err := h.queries.FindOrderForVendor(c.Context(), c.Param("id"), vendor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}
	items, err := h.queries.VendorOrderItems(c.Context(), order.ID, vendor.ID)
	if err != nil {
		return nil, err
	}

	return renderAs(c, "vendor/order", "Order "+order.Number, user.Name, map[string]any{
		"Order":    order,
		"Items":    items,
		"Statuses": repository.OrderStatuses,
	}), nil
}

func (h *Vendors) updateOrder(c *dispatch.Context) (*dispatch.Response, error) {
	_, vendor, err := h.vendor(c)
	if err != nil {
		return nil, err
	}

	order, err := h.queries.FindOrderForVendor(c.Context(), c.Param("id"), vendor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	status := c.Form("status")
	if !repository.ValidOrderStatus(status) {
		c.SetFlash(dispatch.FlashError, "Invalid order status")
		return dispatch.SeeOther("/vendor/order/" + order.ID), nil
	}
	if err := h.queries.UpdateOrderStatus(c.Context(), order.ID, status); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Order status updated successfully")
	return dispatch.SeeOther("/vendor/order/" + order.ID), nil
}
