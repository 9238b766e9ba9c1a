package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

func decodeEnvelope(t *testing.T, resp *dispatch.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	return out
}

func TestAPIEnvelope(t *testing.T) {
	t.Parallel()

	resp := apiData([]string{"a", "b"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	require.Contains(t, body, "data")

	resp = apiError(http.StatusNotFound, "Product not found")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body = decodeEnvelope(t, resp)
	require.Equal(t, "Product not found", body["error"])
}

func TestAPIAuthenticateMissingKey(t *testing.T) {
	t.Parallel()

	h := NewAPI(nil)
	req := dispatch.NewRequest(http.MethodGet, "/api/products")
	c := dispatch.NewContext(context.Background(), req, nil)

	denied, err := h.authenticate(c)
	require.NoError(t, err)
	require.NotNil(t, denied)
	require.Equal(t, http.StatusUnauthorized, denied.StatusCode)
	require.Equal(t, "No API key provided", decodeEnvelope(t, denied)["error"])
}

func TestAPICartAddMissingProduct(t *testing.T) {
	t.Parallel()

	h := NewAPI(nil)
	c := formContext(t, nil)

	resp, err := h.cartAdd(c)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Missing required fields", decodeEnvelope(t, resp)["error"])
}

func TestToAPIProduct(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	listing := repository.ProductListing{
		Product: repository.Product{
			ID:          "prod-1",
			VendorID:    "vendor-1",
			Name:        "Hand-thrown mug",
			Slug:        "hand-thrown-mug",
			Description: "Stoneware.",
			PriceCents:  2400,
			Stock:       12,
			ImagePath:   "products/mug.webp",
			CreatedAt:   created,
		},
		VendorName: "Clay & Kiln",
	}

	got := toAPIProduct(listing)
	require.Equal(t, "prod-1", got.ID)
	require.Equal(t, "Clay & Kiln", got.VendorName)
	require.Equal(t, int64(2400), got.PriceCents)
	require.Equal(t, created, got.CreatedAt)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"price_cents":2400`)
	require.Contains(t, string(raw), `"vendor_name":"Clay & Kiln"`)
}
