package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"time"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/cache"
	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
	"github.com/bazaarlabs/bazaar/pkg/slug"
	"github.com/bazaarlabs/bazaar/pkg/storage"
)

// settingsCacheKey holds the marketplace settings map; admins saving
// settings invalidate it.
const (
	settingsCacheKey = "settings"
	settingsCacheTTL = 5 * time.Minute
)

// settingKeys are the editable marketplace settings, in form order.
var settingKeys = []string{
	repository.SettingSiteName,
	repository.SettingContactEmail,
	repository.SettingSupportPhone,
	repository.SettingAddress,
	repository.SettingCurrency,
	repository.SettingTaxRate,
	repository.SettingShippingFee,
	repository.SettingMinOrderAmount,
	repository.SettingMaintenanceMode,
	repository.SettingAllowRegistrations,
}

func init() {
	registerViews(map[string]string{
		"admin/dashboard": `
<h1>Admin</h1>
<ul>
<li>Users: {{.Data.Users}}</li>
<li>Products: {{.Data.Products}}</li>
<li>Orders: {{.Data.Orders}}</li>
</ul>
<p><a href="/admin/users">Users</a> · <a href="/admin/products">Products</a> · <a href="/admin/orders">Orders</a> · <a href="/admin/settings">Settings</a> · <a href="/admin/audit/logs">Audit log</a> · <a href="/admin/export?type=orders">Export orders</a> · <a href="/admin/export?type=products">Export products</a></p>`,
		"admin/users": `
<h1>Users</h1>
<table>
<tr><th>Name</th><th>Email</th><th>Role</th><th>Status</th><th></th></tr>
{{range .Data.Users}}<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.Role}}</td><td>{{.Status}}</td><td><a href="/admin/users/edit/{{.ID}}">Edit</a></td></tr>{{end}}
</table>
{{if gt .Data.Page 1}}<a href="/admin/users?page={{.Data.PrevPage}}">Previous</a>{{end}}
{{if .Data.HasNext}}<a href="/admin/users?page={{.Data.NextPage}}">Next</a>{{end}}`,
		"admin/user_edit": `
<h1>Edit user</h1>
<form method="POST" action="/admin/users/edit/{{.Data.User.ID}}">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Name <input type="text" name="name" value="{{.Data.User.Name}}" required></label>
<label>Email <input type="email" name="email" value="{{.Data.User.Email}}" required></label>
<label>Role
<select name="role">
{{$role := .Data.User.Role}}
{{range .Data.Roles}}<option value="{{.}}"{{if eq . $role}} selected{{end}}>{{.}}</option>{{end}}
</select>
</label>
<label>Status
<select name="status">
{{$status := .Data.User.Status}}
{{range .Data.Statuses}}<option value="{{.}}"{{if eq . $status}} selected{{end}}>{{.}}</option>{{end}}
</select>
</label>
<button type="submit">Save</button>
</form>`,
		"admin/products": `
<h1>Products</h1>
<p><a href="/admin/products/create">Add a product</a></p>
<table>
<tr><th>Name</th><th>Vendor</th><th>Price</th><th>Stock</th><th>Status</th></tr>
{{range .Data.Products}}<tr><td><a href="/admin/products/edit/{{.ID}}">{{.Name}}</a></td><td>{{.VendorName}}</td><td>{{money .PriceCents}}</td><td>{{.Stock}}</td><td>{{if .Active}}active{{else}}inactive{{end}}</td></tr>{{end}}
</table>
{{if gt .Data.Page 1}}<a href="/admin/products?page={{.Data.PrevPage}}">Previous</a>{{end}}
{{if .Data.HasNext}}<a href="/admin/products?page={{.Data.NextPage}}">Next</a>{{end}}`,
		"admin/product_form": `
<h1>{{if .Data.Product}}Edit product{{else}}New product{{end}}</h1>
<form method="POST" enctype="multipart/form-data">
<input type="hidden" name="_token" value="{{.CSRF}}">
{{if .Data.Product}}<p>Vendor: {{.Data.VendorName}}</p>{{else}}
<label>Vendor
<select name="vendor_id" required>
<option value="">Select a vendor</option>
{{range .Data.Vendors}}<option value="{{.ID}}">{{.BusinessName}}</option>{{end}}
</select>
</label>
{{end}}
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
		"admin/orders": `
<h1>Orders</h1>
<form method="GET" action="/admin/orders">
<select name="status">
<option value="">All statuses</option>
{{$status := .Data.Status}}
{{range .Data.Statuses}}<option value="{{.}}"{{if eq . $status}} selected{{end}}>{{.}}</option>{{end}}
</select>
<button type="submit">Filter</button>
</form>
<table>
<tr><th>Number</th><th>Customer</th><th>Total</th><th>Status</th><th>Date</th></tr>
{{range .Data.Orders}}<tr><td><a href="/admin/orders/view/{{.ID}}">{{.Number}}</a></td><td>{{.CustomerName}}</td><td>{{money .TotalCents}}</td><td>{{.Status}}</td><td>{{.CreatedAt.Format "Jan 2, 2006"}}</td></tr>{{end}}
</table>
{{if gt .Data.Page 1}}<a href="/admin/orders?page={{.Data.PrevPage}}&status={{.Data.Status}}">Previous</a>{{end}}
{{if .Data.HasNext}}<a href="/admin/orders?page={{.Data.NextPage}}&status={{.Data.Status}}">Next</a>{{end}}`,
		"admin/order": `
<h1>Order {{.Data.Order.Number}}</h1>
<p>Customer: {{.Data.Order.CustomerName}} ({{.Data.Order.CustomerEmail}})</p>
<p>Ships to: {{.Data.Order.ShippingName}}, {{.Data.Order.ShippingAddr}}</p>
<ul>
{{range .Data.Items}}<li>{{.ProductName}} × {{.Quantity}} — {{money .PriceCents}}</li>{{end}}
</ul>
{{if .Data.Order.DiscountCents}}<p>Discount{{with .Data.Order.DiscountCode}} ({{.}}){{end}}: -{{money .Data.Order.DiscountCents}}</p>{{end}}
<p>Total: {{money .Data.Order.TotalCents}}</p>
<form method="POST" action="/admin/orders/status/{{.Data.Order.ID}}">
<input type="hidden" name="_token" value="{{.CSRF}}">
<select name="status">
{{$current := .Data.Order.Status}}
{{range .Data.Statuses}}<option value="{{.}}"{{if eq . $current}} selected{{end}}>{{.}}</option>{{end}}
</select>
<button type="submit">Update status</button>
</form>`,
		"admin/settings": `
<h1>Settings</h1>
<form method="POST" action="/admin/settings">
<input type="hidden" name="_token" value="{{.CSRF}}">
{{range .Data.Keys}}<label>{{.}} <input type="text" name="{{.}}" value="{{index $.Data.Values .}}"></label>
{{end}}
<button type="submit">Save</button>
</form>`,
	})
}

// Admin serves the marketplace back office.
type Admin struct {
	queries  *repository.Queries
	identity Identity
	settings cache.Cache[map[string]string]
	files    storage.Storage
}

// NewAdmin creates the admin controller. Settings reads go through the
// cache; saving settings invalidates it. Product images upload through
// the given storage.
func NewAdmin(queries *repository.Queries, identity Identity, settings cache.Cache[map[string]string], files storage.Storage) *Admin {
	return &Admin{queries: queries, identity: identity, settings: settings, files: files}
}

// Routes declares the back office; every route requires an administrator.
func (h *Admin) Routes(r *dispatch.Router) {
	r.GET("/admin", h.dashboard, dispatch.CapabilityAdministrator)
	r.GET("/admin/users", h.users, dispatch.CapabilityAdministrator)
	r.GET("/admin/users/edit/{id}", h.userForm, dispatch.CapabilityAdministrator)
	r.POST("/admin/users/edit/{id}", h.updateUser, dispatch.CapabilityAdministrator)
	r.GET("/admin/products", h.products, dispatch.CapabilityAdministrator)
	r.GET("/admin/products/create", h.productCreateForm, dispatch.CapabilityAdministrator)
	r.POST("/admin/products/create", h.createProduct, dispatch.CapabilityAdministrator)
	r.GET("/admin/products/edit/{id}", h.productEditForm, dispatch.CapabilityAdministrator)
	r.POST("/admin/products/edit/{id}", h.updateProduct, dispatch.CapabilityAdministrator)
	r.GET("/admin/orders", h.orders, dispatch.CapabilityAdministrator)
	r.GET("/admin/orders/view/{id}", h.order, dispatch.CapabilityAdministrator)
	r.POST("/admin/orders/status/{id}", h.updateOrderStatus, dispatch.CapabilityAdministrator)
	r.GET("/admin/settings", h.settingsForm, dispatch.CapabilityAdministrator)
	r.POST("/admin/settings", h.saveSettings, dispatch.CapabilityAdministrator)
	r.GET("/admin/export", h.export, dispatch.CapabilityAdministrator)
}

func (h *Admin) userName(c *dispatch.Context) string {
	user, _ := h.identity.CurrentUser(c)
	return user.Name
}

func (h *Admin) dashboard(c *dispatch.Context) (*dispatch.Response, error) {
	users, err := h.queries.CountUsers(c.Context())
	if err != nil {
		return nil, err
	}
	products, err := h.queries.CountProducts(c.Context())
	if err != nil {
		return nil, err
	}
	orders, err := h.queries.CountOrders(c.Context())
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/dashboard", "Admin", h.userName(c), map[string]any{
		"Users":    users,
		"Products": products,
		"Orders":   orders,
	}), nil
}

func (h *Admin) users(c *dispatch.Context) (*dispatch.Response, error) {
	pageNum := page(c)
	users, err := h.queries.ListUsers(c.Context(), defaultPageSize+1, offset(pageNum))
	if err != nil {
		return nil, err
	}

	hasNext := len(users) > defaultPageSize
	if hasNext {
		users = users[:defaultPageSize]
	}

	return renderAs(c, "admin/users", "Users", h.userName(c), map[string]any{
		"Users":    users,
		"Page":     pageNum,
		"PrevPage": pageNum - 1,
		"NextPage": pageNum + 1,
		"HasNext":  hasNext,
	}), nil
}

func (h *Admin) userForm(c *dispatch.Context) (*dispatch.Response, error) {
	user, err := h.queries.FindUser(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	return renderAs(c, "admin/user_edit", "Edit user", h.userName(c), map[string]any{
		"User":     user,
		"Roles":    []string{repository.RoleCustomer, repository.RoleVendor, repository.RoleAdmin},
		"Statuses": []string{repository.UserStatusActive, repository.UserStatusLocked, repository.UserStatusDisabled},
	}), nil
}

func (h *Admin) updateUser(c *dispatch.Context) (*dispatch.Response, error) {
	userID := c.Param("id")

	name := sanitizer.Plain(c.Form("name"))
	email := c.Form("email")
	role := c.Form("role")
	status := c.Form("status")

	switch {
	case name == "" || !validEmail(email):
		c.SetFlash(dispatch.FlashError, "Name and a valid email are required")
		return dispatch.SeeOther("/admin/users/edit/" + userID), nil
	case role != repository.RoleCustomer && role != repository.RoleVendor && role != repository.RoleAdmin:
		c.SetFlash(dispatch.FlashError, "Invalid role")
		return dispatch.SeeOther("/admin/users/edit/" + userID), nil
	case status != repository.UserStatusActive && status != repository.UserStatusLocked && status != repository.UserStatusDisabled:
		c.SetFlash(dispatch.FlashError, "Invalid status")
		return dispatch.SeeOther("/admin/users/edit/" + userID), nil
	}

	if err := h.queries.UpdateUser(c.Context(), userID, name, email, role, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		if errors.Is(err, repository.ErrDuplicate) {
			c.SetFlash(dispatch.FlashError, "An account with this email already exists")
			return dispatch.SeeOther("/admin/users/edit/" + userID), nil
		}
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "User updated")
	return dispatch.SeeOther("/admin/users"), nil
}

func (h *Admin) products(c *dispatch.Context) (*dispatch.Response, error) {
	pageNum := page(c)
	products, err := h.queries.AllProducts(c.Context(), defaultPageSize+1, offset(pageNum))
	if err != nil {
		return nil, err
	}

	hasNext := len(products) > defaultPageSize
	if hasNext {
		products = products[:defaultPageSize]
	}

	return renderAs(c, "admin/products", "Products", h.userName(c), map[string]any{
		"Products": products,
		"Page":     pageNum,
		"PrevPage": pageNum - 1,
		"NextPage": pageNum + 1,
		"HasNext":  hasNext,
	}), nil
}

func (h *Admin) productCreateForm(c *dispatch.Context) (*dispatch.Response, error) {
	vendors, err := h.queries.ListVendors(c.Context())
	if err != nil {
		return nil, err
	}
	categories, err := h.queries.Categories(c.Context())
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/product_form", "New product", h.userName(c), map[string]any{
		"Product":    (*repository.Product)(nil),
		"Vendors":    vendors,
		"Categories": categories,
	}), nil
}

func (h *Admin) createProduct(c *dispatch.Context) (*dispatch.Response, error) {
	vendorID := c.Form("vendor_id")
	if vendorID == "" {
		c.SetFlash(dispatch.FlashError, "Please select a vendor")
		return dispatch.SeeOther("/admin/products/create"), nil
	}
	vendor, err := h.queries.FindVendor(c.Context(), vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.SetFlash(dispatch.FlashError, "Please select a vendor")
			return dispatch.SeeOther("/admin/products/create"), nil
		}
		return nil, err
	}

	form, msg := productForm(c, vendor.ID)
	if msg != "" {
		c.SetFlash(dispatch.FlashError, msg)
		return dispatch.SeeOther("/admin/products/create"), nil
	}
	form.Slug = slug.Make(form.Name, slug.MaxLength(64), slug.WithSuffix(6))

	product, err := h.queries.CreateProduct(c.Context(), form)
	if err != nil {
		return nil, err
	}

	if fh := c.Request().File("image"); fh != nil {
		if resp := h.storeProductImage(c, product.ID); resp != nil {
			return resp, nil
		}
	}

	c.SetFlash(dispatch.FlashSuccess, "Product created successfully")
	return dispatch.SeeOther("/admin/products"), nil
}

func (h *Admin) productEditForm(c *dispatch.Context) (*dispatch.Response, error) {
	product, err := h.queries.FindProduct(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.SetFlash(dispatch.FlashError, "Product not found")
			return dispatch.SeeOther("/admin/products"), nil
		}
		return nil, err
	}
	categories, err := h.queries.Categories(c.Context())
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/product_form", "Edit product", h.userName(c), map[string]any{
		"Product":    &product.Product,
		"VendorName": product.VendorName,
		"Categories": categories,
	}), nil
}

func (h *Admin) updateProduct(c *dispatch.Context) (*dispatch.Response, error) {
	product, err := h.queries.FindProduct(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.SetFlash(dispatch.FlashError, "Product not found")
			return dispatch.SeeOther("/admin/products"), nil
		}
		return nil, err
	}

	// Editing never moves a product to another vendor.
	form, msg := productForm(c, product.VendorID)
	if msg != "" {
		c.SetFlash(dispatch.FlashError, msg)
		return dispatch.SeeOther("/admin/products/edit/" + product.ID), nil
	}
	form.Slug = product.Slug

	if err := h.queries.UpdateProduct(c.Context(), product.ID, form); err != nil {
		return nil, err
	}

	if fh := c.Request().File("image"); fh != nil {
		if resp := h.storeProductImage(c, product.ID); resp != nil {
			return resp, nil
		}
	}

	c.SetFlash(dispatch.FlashSuccess, "Product updated successfully")
	return dispatch.SeeOther("/admin/products"), nil
}

// storeProductImage uploads the posted image and records its key. A
// non-nil response means the upload failed and the caller should return
// it as-is.
func (h *Admin) storeProductImage(c *dispatch.Context, productID string) *dispatch.Response {
	info, err := storage.PutFile(c.Context(), h.files, c.Request().File("image"),
		storage.WithPrefix("products"),
		storage.WithACL(storage.ACLPublicRead),
		storage.WithValidation(storage.ImageOnly(), storage.MaxSize(maxProductImageSize)),
	)
	if err != nil {
		var validation *storage.FileValidationError
		if errors.As(err, &validation) || errors.Is(err, storage.ErrEmptyFile) {
			c.SetFlash(dispatch.FlashError, "Image must be a valid image file under 5 MB")
			return dispatch.SeeOther("/admin/products/edit/" + productID)
		}
		c.LogError("product image upload failed", "product_id", productID, "error", err)
		c.SetFlash(dispatch.FlashError, "Image upload failed. Please try again.")
		return dispatch.SeeOther("/admin/products/edit/" + productID)
	}
	if err := h.queries.UpdateProductImage(c.Context(), productID, info.Key); err != nil {
		c.LogError("product image record failed", "product_id", productID, "error", err)
	}
	return nil
}

func (h *Admin) orders(c *dispatch.Context) (*dispatch.Response, error) {
	status := c.Query("status")
	if status != "" && !repository.ValidOrderStatus(status) {
		status = ""
	}

	pageNum := page(c)
	orders, err := h.queries.ListOrders(c.Context(), status, defaultPageSize+1, offset(pageNum))
	if err != nil {
		return nil, err
	}

	hasNext := len(orders) > defaultPageSize
	if hasNext {
		orders = orders[:defaultPageSize]
	}

	return renderAs(c, "admin/orders", "Orders", h.userName(c), map[string]any{
		"Orders":   orders,
		"Status":   status,
		"Statuses": repository.OrderStatuses,
		"Page":     pageNum,
		"PrevPage": pageNum - 1,
		"NextPage": pageNum + 1,
		"HasNext":  hasNext,
	}), nil
}

func (h *Admin) order(c *dispatch.Context) (*dispatch.Response, error) {
	order, err := h.queries.FindOrder(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}
	items, err := h.queries.OrderItems(c.Context(), order.ID)
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/order", "Order "+order.Number, h.userName(c), map[string]any{
		"Order":    order,
		"Items":    items,
		"Statuses": repository.OrderStatuses,
	}), nil
}

func (h *Admin) updateOrderStatus(c *dispatch.Context) (*dispatch.Response, error) {
	orderID := c.Param("id")

	status := c.Form("status")
	if !repository.ValidOrderStatus(status) {
		c.SetFlash(dispatch.FlashError, "Invalid order status")
		return dispatch.SeeOther("/admin/orders/view/" + orderID), nil
	}

	if err := h.queries.UpdateOrderStatus(c.Context(), orderID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Order status updated successfully")
	return dispatch.SeeOther("/admin/orders/view/" + orderID), nil
}

func (h *Admin) settingsForm(c *dispatch.Context) (*dispatch.Response, error) {
	values, err := cache.GetOrLoad(c.Context(), h.settings, settingsCacheKey,
		func(ctx context.Context) (map[string]string, time.Duration, error) {
			v, err := h.queries.AllSettings(ctx)
			return v, settingsCacheTTL, err
		})
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/settings", "Settings", h.userName(c), map[string]any{
		"Keys":   settingKeys,
		"Values": values,
	}), nil
}

func (h *Admin) saveSettings(c *dispatch.Context) (*dispatch.Response, error) {
	values := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		values[key] = sanitizer.Plain(c.Form(key))
	}

	if err := h.queries.SetSettings(c.Context(), values); err != nil {
		return nil, err
	}
	if err := h.settings.Delete(c.Context(), settingsCacheKey); err != nil {
		c.LogWarn("settings cache invalidation failed", "error", err)
	}

	c.SetFlash(dispatch.FlashSuccess, "Settings saved")
	return dispatch.SeeOther("/admin/settings"), nil
}

// export streams the orders or products table as a CSV attachment.
func (h *Admin) export(c *dispatch.Context) (*dispatch.Response, error) {
	switch c.Query("type") {
	case "orders":
		return h.exportOrders(c)
	case "products":
		return h.exportProducts(c)
	default:
		return dispatch.Text(400, "Unknown export type"), nil
	}
}

func (h *Admin) exportOrders(c *dispatch.Context) (*dispatch.Response, error) {
	orders, err := h.queries.AllOrders(c.Context())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Order ID", "Customer", "Total", "Status", "Date"})
	for _, o := range orders {
		_ = w.Write([]string{
			o.Number,
			o.CustomerName,
			money(o.TotalCents),
			o.Status,
			o.CreatedAt.Format("2006-01-02"),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return dispatch.Attachment(buf.Bytes(), "text/csv", "orders.csv"), nil
}

func (h *Admin) exportProducts(c *dispatch.Context) (*dispatch.Response, error) {
	products, err := h.queries.ExportProducts(c.Context())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "Name", "Category", "Price", "Stock", "Status"})
	for _, p := range products {
		status := "inactive"
		if p.Active {
			status = "active"
		}
		_ = w.Write([]string{
			p.ID,
			p.Name,
			p.CategoryName,
			money(p.PriceCents),
			strconv.Itoa(p.Stock),
			status,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return dispatch.Attachment(buf.Bytes(), "text/csv", "products.csv"), nil
}
