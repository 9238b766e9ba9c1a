package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubGuard allows or denies based on a fixed capability set.
type stubGuard struct {
	granted map[Capability]bool
	locked  bool
	checks  int
}

func (g *stubGuard) Check(_ *Context, required Capability) Verdict {
	g.checks++
	if g.locked {
		return Deny(DenyLocked, Redirect(http.StatusFound, "/login?locked=1"))
	}
	if g.granted[required] {
		return Allow()
	}
	switch required {
	case CapabilityAdministrator:
		return Deny(DenyAdminRequired, Redirect(http.StatusFound, "/"))
	case CapabilityVendor:
		return Deny(DenyVendorRequired, Redirect(http.StatusFound, "/"))
	default:
		return Deny(DenyAuthRequired, Redirect(http.StatusFound, "/login"))
	}
}

func newTestContext(method, target string, opts ...RequestOption) *Context {
	return NewContext(context.Background(), NewRequest(method, target, opts...), nil)
}

func named(name string) HandlerFunc {
	return func(c *Context) (*Response, error) {
		return Text(200, name), nil
	}
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()

	t.Run("first matching route wins over a later overlapping one", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/products/featured", named("featured"))
		r.GET("/products/{id}", named("by-id"))

		resp, err := r.Dispatch(newTestContext("GET", "/products/featured"))
		require.NoError(t, err)
		require.Equal(t, "featured", string(resp.Body))
	})

	t.Run("registration order decides ambiguous overlaps", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/products/{id}", named("by-id"))
		r.GET("/products/featured", named("featured"))

		// The template route was registered first, so it shadows the literal.
		c := newTestContext("GET", "/products/featured")
		resp, err := r.Dispatch(c)
		require.NoError(t, err)
		require.Equal(t, "by-id", string(resp.Body))
		require.Equal(t, "featured", c.Param("id"))
	})

	t.Run("method mismatch keeps scanning", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/cart", named("view"))
		r.POST("/cart", named("add"))

		resp, err := r.Dispatch(newTestContext("POST", "/cart"))
		require.NoError(t, err)
		require.Equal(t, "add", string(resp.Body))
	})

	t.Run("path parameters are available to the handler", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/a/{x}/b/{y}", func(c *Context) (*Response, error) {
			return Text(200, c.Param("x")+"|"+c.Param("y")), nil
		})

		resp, err := r.Dispatch(newTestContext("GET", "/a/5/b/foo"))
		require.NoError(t, err)
		require.Equal(t, "5|foo", string(resp.Body))
	})

	t.Run("no match yields 404", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/", named("home"))

		resp, err := r.Dispatch(newTestContext("GET", "/missing"))
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("query string does not affect matching", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/search", func(c *Context) (*Response, error) {
			return Text(200, c.Query("q")), nil
		})

		resp, err := r.Dispatch(newTestContext("GET", "/search?q=mug"))
		require.NoError(t, err)
		require.Equal(t, "mug", string(resp.Body))
	})

	t.Run("repeated GET dispatch yields identical responses", func(t *testing.T) {
		t.Parallel()

		hits := 0
		r := NewRouter(nil, nil)
		r.GET("/products/{id}", func(c *Context) (*Response, error) {
			hits++
			return JSON(200, map[string]string{"id": c.Param("id")}), nil
		})

		first, err := r.Dispatch(newTestContext("GET", "/products/42?ref=home"))
		require.NoError(t, err)
		second, err := r.Dispatch(newTestContext("GET", "/products/42?ref=home"))
		require.NoError(t, err)

		require.Equal(t, 2, hits)
		require.Equal(t, first.StatusCode, second.StatusCode)
		require.Equal(t, first.RedirectTo, second.RedirectTo)
		require.Equal(t, string(first.Body), string(second.Body))
	})

	t.Run("handler error is wrapped with route identity", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("storage offline")
		r := NewRouter(nil, nil)
		r.GET("/fail", func(c *Context) (*Response, error) {
			return nil, boom
		})

		resp, err := r.Dispatch(newTestContext("GET", "/fail"))
		require.Nil(t, resp)
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), "GET /fail")
	})

	t.Run("nil response without error is a defect", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		r.GET("/nil", func(c *Context) (*Response, error) {
			return nil, nil
		})

		_, err := r.Dispatch(newTestContext("GET", "/nil"))
		require.ErrorIs(t, err, ErrNilResponse)
	})
}

func TestRouterCapabilities(t *testing.T) {
	t.Parallel()

	t.Run("open route skips the guard entirely", func(t *testing.T) {
		t.Parallel()

		guard := &stubGuard{}
		r := NewRouter(guard, nil)
		r.GET("/login", named("login"))

		_, err := r.Dispatch(newTestContext("GET", "/login"))
		require.NoError(t, err)
		require.Zero(t, guard.checks)
	})

	t.Run("denied capability returns the guard's denial", func(t *testing.T) {
		t.Parallel()

		guard := &stubGuard{}
		r := NewRouter(guard, nil)
		r.GET("/account", named("account"), CapabilityAuthenticated)

		resp, err := r.Dispatch(newTestContext("GET", "/account"))
		require.NoError(t, err)
		require.True(t, resp.IsRedirect())
		require.Equal(t, "/login", resp.RedirectTo)
	})

	t.Run("granted capability reaches the handler", func(t *testing.T) {
		t.Parallel()

		guard := &stubGuard{granted: map[Capability]bool{CapabilityAdministrator: true}}
		r := NewRouter(guard, nil)
		r.GET("/admin", named("admin"), CapabilityAdministrator)

		resp, err := r.Dispatch(newTestContext("GET", "/admin"))
		require.NoError(t, err)
		require.Equal(t, "admin", string(resp.Body))
		require.Equal(t, 1, guard.checks)
	})

	t.Run("locked account is denied even on matching routes", func(t *testing.T) {
		t.Parallel()

		guard := &stubGuard{granted: map[Capability]bool{CapabilityAuthenticated: true}, locked: true}
		r := NewRouter(guard, nil)
		r.GET("/account", named("account"), CapabilityAuthenticated)

		resp, err := r.Dispatch(newTestContext("GET", "/account"))
		require.NoError(t, err)
		require.Equal(t, "/login?locked=1", resp.RedirectTo)
	})

	t.Run("guard denial without a response fails closed", func(t *testing.T) {
		t.Parallel()

		broken := guardFunc(func(c *Context, required Capability) Verdict {
			return Verdict{Reason: DenyAuthRequired}
		})
		r := NewRouter(broken, nil)
		r.GET("/account", named("account"), CapabilityAuthenticated)

		resp, err := r.Dispatch(newTestContext("GET", "/account"))
		require.Nil(t, resp)
		require.Error(t, err)
	})

	t.Run("gated route without a guard is rejected at registration", func(t *testing.T) {
		t.Parallel()

		r := NewRouter(nil, nil)
		err := r.Register(Route{Method: "GET", Pattern: "/admin", Handler: named("admin"), Capability: CapabilityAdministrator})
		require.ErrorIs(t, err, ErrMalformedRoute)
	})
}

type guardFunc func(c *Context, required Capability) Verdict

func (f guardFunc) Check(c *Context, required Capability) Verdict { return f(c, required) }

func TestRouterMount(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, nil)
	r.Mount(handlerFunc(func(r *Router) {
		r.GET("/mounted", named("mounted"))
	}))

	resp, err := r.Dispatch(newTestContext("GET", "/mounted"))
	require.NoError(t, err)
	require.Equal(t, "mounted", string(resp.Body))
}

type handlerFunc func(r *Router)

func (f handlerFunc) Routes(r *Router) { f(r) }

func TestMustRegisterPanics(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, nil)
	require.Panics(t, func() {
		r.GET("/a//b", named("bad"))
	})
}
