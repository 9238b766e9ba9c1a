package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

func TestAdminProductFormView(t *testing.T) {
	t.Parallel()

	t.Run("create mode offers a vendor select", func(t *testing.T) {
		t.Parallel()

		c := dispatch.NewContext(context.Background(),
			dispatch.NewRequest(http.MethodGet, "/admin/products/create"), nil)
		resp := renderAs(c, "admin/product_form", "New product", "Ada", map[string]any{
			"Product": (*repository.Product)(nil),
			"Vendors": []repository.Vendor{
				{ID: "vendor-1", BusinessName: "Clay & Kiln"},
			},
			"Categories": nil,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(resp.Body), `name="vendor_id"`)
		require.Contains(t, string(resp.Body), "Clay &amp; Kiln")
		require.Contains(t, string(resp.Body), "New product")
	})

	t.Run("edit mode pins the vendor", func(t *testing.T) {
		t.Parallel()

		c := dispatch.NewContext(context.Background(),
			dispatch.NewRequest(http.MethodGet, "/admin/products/edit/prod-1"), nil)
		resp := renderAs(c, "admin/product_form", "Edit product", "Ada", map[string]any{
			"Product":    &repository.Product{ID: "prod-1", Name: "Hand-thrown mug", PriceCents: 2400},
			"VendorName": "Clay & Kiln",
			"Categories": nil,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotContains(t, string(resp.Body), `name="vendor_id"`)
		require.Contains(t, string(resp.Body), "Hand-thrown mug")
		require.Contains(t, string(resp.Body), "Edit product")
	})
}
