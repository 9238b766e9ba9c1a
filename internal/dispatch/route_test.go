package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ok(c *Context) (*Response, error) { return Text(200, "ok"), nil }

func TestRouteCompile(t *testing.T) {
	t.Parallel()

	valid := []Route{
		{Method: "GET", Pattern: "/", Handler: ok},
		{Method: "GET", Pattern: "/admin/users/edit/{id}", Handler: ok},
		{Method: "POST", Pattern: "/a/{x}/b/{y}", Handler: ok},
		{Method: "DELETE", Pattern: "/cart/remove", Handler: ok},
	}
	for _, rt := range valid {
		require.NoError(t, rt.compile(), "pattern %q", rt.Pattern)
	}

	invalid := []Route{
		{Method: "FETCH", Pattern: "/a", Handler: ok},  // unknown method
		{Method: "GET", Pattern: "/a", Handler: nil},   // nil handler
		{Method: "GET", Pattern: "a/b", Handler: ok},   // not rooted
		{Method: "GET", Pattern: "", Handler: ok},      // empty
		{Method: "GET", Pattern: "/a//b", Handler: ok}, // empty segment
		{Method: "GET", Pattern: "/a/{}", Handler: ok}, // unnamed placeholder
		{Method: "GET", Pattern: "/{x}/{x}", Handler: ok},   // duplicate name
		{Method: "GET", Pattern: "/a/{x}y", Handler: ok},    // partial placeholder
		{Method: "GET", Pattern: "/a/pre{x}", Handler: ok},  // partial placeholder
	}
	for _, rt := range invalid {
		require.ErrorIs(t, rt.compile(), ErrMalformedRoute, "pattern %q", rt.Pattern)
	}
}

func TestRouteMatch(t *testing.T) {
	t.Parallel()

	t.Run("captures named placeholders in template order", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/a/{x}/b/{y}", Handler: ok}
		require.NoError(t, rt.compile())

		params, matched := rt.match("/a/5/b/foo")
		require.True(t, matched)
		require.Equal(t, map[string]string{"x": "5", "y": "foo"}, params)
	})

	t.Run("segment count must match exactly", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/a/{x}/b/{y}", Handler: ok}
		require.NoError(t, rt.compile())

		_, matched := rt.match("/a/b")
		require.False(t, matched)
		_, matched = rt.match("/a/5/b/foo/extra")
		require.False(t, matched)
	})

	t.Run("a placeholder never captures an empty segment", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/a/{x}/b", Handler: ok}
		require.NoError(t, rt.compile())

		_, matched := rt.match("/a//b")
		require.False(t, matched)
	})

	t.Run("literals are case-sensitive", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/admin", Handler: ok}
		require.NoError(t, rt.compile())

		_, matched := rt.match("/Admin")
		require.False(t, matched)
		_, matched = rt.match("/admin")
		require.True(t, matched)
	})

	t.Run("no trailing slash tolerance", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/products", Handler: ok}
		require.NoError(t, rt.compile())

		_, matched := rt.match("/products/")
		require.False(t, matched)
	})

	t.Run("root pattern matches only the root path", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/", Handler: ok}
		require.NoError(t, rt.compile())

		_, matched := rt.match("/")
		require.True(t, matched)
		_, matched = rt.match("/x")
		require.False(t, matched)
	})

	t.Run("placeholder value may contain any non-slash bytes", func(t *testing.T) {
		t.Parallel()

		rt := Route{Method: "GET", Pattern: "/product/{slug}", Handler: ok}
		require.NoError(t, rt.compile())

		params, matched := rt.match("/product/red-mug.v2")
		require.True(t, matched)
		require.Equal(t, "red-mug.v2", params["slug"])
	})
}

func TestCapabilityString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", CapabilityNone.String())
	require.Equal(t, "authenticated", CapabilityAuthenticated.String())
	require.Equal(t, "administrator", CapabilityAdministrator.String())
	require.Equal(t, "vendor", CapabilityVendor.String())
}
