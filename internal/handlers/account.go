package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bazaarlabs/bazaar/internal/auth"
	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/jobs"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
)

// resetTokenTTL is how long a password-reset link stays valid.
const resetTokenTTL = time.Hour

const (
	minPasswordLength = 8
	minNameLength     = 2
	maxNameLength     = 50
)

func init() {
	registerViews(map[string]string{
		"account/login": `
<h1>Log in</h1>
<form method="POST" action="/login">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Email <input type="email" name="email" value="{{.Data.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Log in</button>
</form>
<p><a href="/password/reset">Forgot your password?</a></p>
<p>New here? <a href="/register">Create an account</a></p>`,
		"account/register": `
<h1>Create an account</h1>
<form method="POST" action="/register">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Name <input type="text" name="name" value="{{.Data.Name}}" required></label>
<label>Email <input type="email" name="email" value="{{.Data.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<label>Confirm password <input type="password" name="password_confirmation" required></label>
<button type="submit">Register</button>
</form>
<p>Already registered? <a href="/login">Log in</a></p>`,
		"account/home": `
<h1>My account</h1>
<p><a href="/account/edit">Edit profile</a> · <a href="/account/orders">All orders</a></p>
<h2>Recent orders</h2>
<ul>
{{range .Data.Orders}}<li><a href="/account/order/{{.ID}}">{{.Number}}</a> — {{money .TotalCents}} — {{.Status}}</li>{{else}}<li>You have no orders yet.</li>{{end}}
</ul>`,
		"account/edit": `
<h1>Edit profile</h1>
<form method="POST" action="/account/update">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Name <input type="text" name="name" value="{{.Data.Name}}" required></label>
<label>Email <input type="email" name="email" value="{{.Data.Email}}" required></label>
<fieldset>
<legend>Change password (optional)</legend>
<label>Current password <input type="password" name="current_password"></label>
<label>New password <input type="password" name="password"></label>
<label>Confirm new password <input type="password" name="password_confirmation"></label>
</fieldset>
<button type="submit">Save</button>
</form>`,
		"account/orders": `
<h1>My orders</h1>
<ul>
{{range .Data.Orders}}<li><a href="/account/order/{{.ID}}">{{.Number}}</a> — {{money .TotalCents}} — {{.Status}} — {{.CreatedAt.Format "Jan 2, 2006"}}</li>{{else}}<li>You have no orders yet.</li>{{end}}
</ul>`,
		"account/order": `
<h1>Order {{.Data.Order.Number}}</h1>
<p>Status: {{.Data.Order.Status}}</p>
<p>Ships to: {{.Data.Order.ShippingName}}, {{.Data.Order.ShippingAddr}}</p>
<ul>
{{range .Data.Items}}<li>{{.ProductName}} × {{.Quantity}} — {{money .PriceCents}}</li>{{end}}
</ul>
{{if .Data.Order.DiscountCents}}<p>Discount{{with .Data.Order.DiscountCode}} ({{.}}){{end}}: -{{money .Data.Order.DiscountCents}}</p>{{end}}
<p>Total: {{money .Data.Order.TotalCents}}</p>`,
		"account/forgot": `
<h1>Reset your password</h1>
<form method="POST" action="/password/reset">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>Email <input type="email" name="email" required></label>
<button type="submit">Send reset link</button>
</form>`,
		"account/reset": `
<h1>Choose a new password</h1>
<form method="POST" action="/password/reset/{{.Data.Token}}">
<input type="hidden" name="_token" value="{{.CSRF}}">
<label>New password <input type="password" name="password" required></label>
<label>Confirm password <input type="password" name="password_confirmation" required></label>
<button type="submit">Reset password</button>
</form>`,
	})
}

// Accounts serves authentication, registration, the customer account area,
// and the password-reset flow.
type Accounts struct {
	queries  *repository.Queries
	identity Identity
	jobs     Enqueuer
}

// NewAccounts creates the account controller.
func NewAccounts(queries *repository.Queries, identity Identity, jobs Enqueuer) *Accounts {
	return &Accounts{queries: queries, identity: identity, jobs: jobs}
}

// Routes declares the account routes. The auth and reset flows are open;
// the account area requires a signed-in user.
func (h *Accounts) Routes(r *dispatch.Router) {
	r.GET("/login", h.loginForm)
	r.POST("/login", h.login)
	r.GET("/register", h.registerForm)
	r.POST("/register", h.register)
	r.GET("/logout", h.logout)

	r.GET("/password/reset", h.forgotForm)
	r.POST("/password/reset", h.sendReset)
	r.GET("/password/reset/{token}", h.resetForm)
	r.POST("/password/reset/{token}", h.reset)

	r.GET("/account", h.home, dispatch.CapabilityAuthenticated)
	r.GET("/account/edit", h.edit, dispatch.CapabilityAuthenticated)
	r.POST("/account/update", h.update, dispatch.CapabilityAuthenticated)
	r.GET("/account/orders", h.orders, dispatch.CapabilityAuthenticated)
	r.GET("/account/order/{id}", h.order, dispatch.CapabilityAuthenticated)
}

func (h *Accounts) loginForm(c *dispatch.Context) (*dispatch.Response, error) {
	if _, ok := h.identity.CurrentUser(c); ok {
		return dispatch.SeeOther("/account"), nil
	}
	return render(c, "account/login", "Log in", map[string]any{"Email": ""}), nil
}

func (h *Accounts) login(c *dispatch.Context) (*dispatch.Response, error) {
	if _, ok := h.identity.CurrentUser(c); ok {
		return dispatch.SeeOther("/account"), nil
	}

	email := strings.ToLower(strings.TrimSpace(c.Form("email")))
	_, err := h.identity.Attempt(c, email, c.Form("password"))
	switch {
	case err == nil:
		c.SetFlash(dispatch.FlashSuccess, "Welcome back!")
		return dispatch.SeeOther(c.IntendedPath("/account")), nil
	case errors.Is(err, auth.ErrAccountLocked):
		c.SetFlash(dispatch.FlashError, "Your account has been locked due to repeated failed login attempts")
		return dispatch.SeeOther("/login"), nil
	case errors.Is(err, auth.ErrAccountDisabled):
		c.SetFlash(dispatch.FlashError, "Your account has been disabled")
		return dispatch.SeeOther("/login"), nil
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.SetFlash(dispatch.FlashError, "Invalid email or password")
		return dispatch.SeeOther("/login"), nil
	default:
		return nil, err
	}
}

func (h *Accounts) registerForm(c *dispatch.Context) (*dispatch.Response, error) {
	if _, ok := h.identity.CurrentUser(c); ok {
		return dispatch.SeeOther("/account"), nil
	}
	return render(c, "account/register", "Register", map[string]any{"Name": "", "Email": ""}), nil
}

func (h *Accounts) register(c *dispatch.Context) (*dispatch.Response, error) {
	name := sanitizer.Plain(c.Form("name"))
	email := strings.ToLower(strings.TrimSpace(c.Form("email")))
	password := c.Form("password")

	if msg := validateRegistration(name, email, password, c.Form("password_confirmation")); msg != "" {
		c.SetFlash(dispatch.FlashError, msg)
		return render(c, "account/register", "Register", map[string]any{"Name": name, "Email": email}), nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if _, err := h.queries.CreateUser(c.Context(), name, email, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.SetFlash(dispatch.FlashError, "An account with this email already exists")
			return render(c, "account/register", "Register", map[string]any{"Name": name, "Email": email}), nil
		}
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Registration successful! You can now login.")
	return dispatch.SeeOther("/login"), nil
}

func validateRegistration(name, email, password, confirmation string) string {
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return "Name must be between 2 and 50 characters"
	}
	if !validEmail(email) {
		return "Please enter a valid email address"
	}
	if len(password) < minPasswordLength {
		return "Password must be at least 8 characters"
	}
	if password != confirmation {
		return "Passwords do not match"
	}
	return ""
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (h *Accounts) logout(c *dispatch.Context) (*dispatch.Response, error) {
	if err := h.identity.Logout(c); err != nil {
		return nil, err
	}
	return dispatch.SeeOther("/"), nil
}

func (h *Accounts) home(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)

	orders, err := h.queries.OrdersByUser(c.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	if len(orders) > 5 {
		orders = orders[:5]
	}

	return renderAs(c, "account/home", "My account", user.Name, map[string]any{
		"Orders": orders,
	}), nil
}

func (h *Accounts) edit(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)
	return renderAs(c, "account/edit", "Edit profile", user.Name, map[string]any{
		"Name":  user.Name,
		"Email": user.Email,
	}), nil
}

func (h *Accounts) update(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)

	name := sanitizer.Plain(c.Form("name"))
	email := strings.ToLower(strings.TrimSpace(c.Form("email")))

	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		c.SetFlash(dispatch.FlashError, "Name must be between 2 and 50 characters")
		return dispatch.SeeOther("/account/edit"), nil
	}
	if !validEmail(email) {
		c.SetFlash(dispatch.FlashError, "Please enter a valid email address")
		return dispatch.SeeOther("/account/edit"), nil
	}

	if password := c.Form("password"); password != "" {
		if !auth.VerifyPassword(user.PasswordHash, c.Form("current_password")) {
			c.SetFlash(dispatch.FlashError, "Current password is incorrect")
			return dispatch.SeeOther("/account/edit"), nil
		}
		if len(password) < minPasswordLength {
			c.SetFlash(dispatch.FlashError, "Password must be at least 8 characters")
			return dispatch.SeeOther("/account/edit"), nil
		}
		if password != c.Form("password_confirmation") {
			c.SetFlash(dispatch.FlashError, "Passwords do not match")
			return dispatch.SeeOther("/account/edit"), nil
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		if err := h.queries.UpdateUserPassword(c.Context(), user.ID, hash); err != nil {
			return nil, err
		}
	}

	if err := h.queries.UpdateUser(c.Context(), user.ID, name, email, user.Role, user.Status); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.SetFlash(dispatch.FlashError, "An account with this email already exists")
			return dispatch.SeeOther("/account/edit"), nil
		}
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Profile updated successfully")
	return dispatch.SeeOther("/account"), nil
}

func (h *Accounts) orders(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)

	orders, err := h.queries.OrdersByUser(c.Context(), user.ID)
	if err != nil {
		return nil, err
	}
	return renderAs(c, "account/orders", "My orders", user.Name, map[string]any{
		"Orders": orders,
	}), nil
}

func (h *Accounts) order(c *dispatch.Context) (*dispatch.Response, error) {
	user, _ := h.identity.CurrentUser(c)

	order, err := h.queries.FindOrderForUser(c.Context(), c.Param("id"), user.ID)
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

	return renderAs(c, "account/order", "Order "+order.Number, user.Name, map[string]any{
		"Order": order,
		"Items": items,
	}), nil
}

func (h *Accounts) forgotForm(c *dispatch.Context) (*dispatch.Response, error) {
	return render(c, "account/forgot", "Reset password", nil), nil
}

// sendReset always reports success so the form cannot be used to probe
// which emails have accounts.
func (h *Accounts) sendReset(c *dispatch.Context) (*dispatch.Response, error) {
	email := strings.ToLower(strings.TrimSpace(c.Form("email")))

	user, err := h.queries.FindUserByEmail(c.Context(), email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// fall through to the generic flash
	case err != nil:
		return nil, err
	default:
		token, err := newResetToken()
		if err != nil {
			return nil, err
		}
		if err := h.queries.CreateResetToken(c.Context(), user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
			return nil, err
		}
		err = h.jobs.Enqueue(c.Context(), jobs.TaskPasswordReset, jobs.PasswordResetPayload{
			Name:  user.Name,
			Email: user.Email,
			Token: token,
		})
		if err != nil {
			return nil, err
		}
	}

	c.SetFlash(dispatch.FlashSuccess, "Password reset instructions have been sent to your email")
	return dispatch.SeeOther("/login"), nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (h *Accounts) resetForm(c *dispatch.Context) (*dispatch.Response, error) {
	token := c.Param("token")
	if _, err := h.queries.FindValidResetToken(c.Context(), token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.SetFlash(dispatch.FlashError, "Invalid or expired password reset link")
			return dispatch.SeeOther("/login"), nil
		}
		return nil, err
	}
	return render(c, "account/reset", "Choose a new password", map[string]any{"Token": token}), nil
}

func (h *Accounts) reset(c *dispatch.Context) (*dispatch.Response, error) {
	token := c.Param("token")

	pending, err := h.queries.FindValidResetToken(c.Context(), token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.SetFlash(dispatch.FlashError, "Invalid or expired password reset link")
			return dispatch.SeeOther("/login"), nil
		}
		return nil, err
	}

	password := c.Form("password")
	if len(password) < minPasswordLength {
		c.SetFlash(dispatch.FlashError, "Password must be at least 8 characters")
		return dispatch.SeeOther("/password/reset/"+token), nil
	}
	if password != c.Form("password_confirmation") {
		c.SetFlash(dispatch.FlashError, "Passwords do not match")
		return dispatch.SeeOther("/password/reset/"+token), nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := h.queries.UpdateUserPassword(c.Context(), pending.UserID, hash); err != nil {
		return nil, err
	}
	if err := h.queries.ConsumeResetToken(c.Context(), token); err != nil {
		return nil, err
	}

	c.SetFlash(dispatch.FlashSuccess, "Your password has been reset successfully")
	return dispatch.SeeOther("/login"), nil
}
