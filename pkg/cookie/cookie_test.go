package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/pkg/cookie"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func roundTrip(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestManagerPlain(t *testing.T) {
	t.Parallel()

	m, err := cookie.New()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Set(w, "currency", "EUR", 3600)

	got, err := m.Get(roundTrip(t, w), "currency")
	require.NoError(t, err)
	require.Equal(t, "EUR", got)

	_, err = m.Get(httptest.NewRequest("GET", "/", nil), "currency")
	require.ErrorIs(t, err, cookie.ErrNotFound)
}

func TestManagerSigned(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		m, err := cookie.New(cookie.WithSecret(testSecret))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		require.NoError(t, m.SetSigned(w, "session", "token-value", 0))

		got, err := m.GetSigned(roundTrip(t, w), "session")
		require.NoError(t, err)
		require.Equal(t, "token-value", got)
	})

	t.Run("tampered value is rejected", func(t *testing.T) {
		t.Parallel()

		m, err := cookie.New(cookie.WithSecret(testSecret))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		require.NoError(t, m.SetSigned(w, "session", "token-value", 0))

		r := httptest.NewRequest("GET", "/", nil)
		for _, c := range w.Result().Cookies() {
			c.Value = "x" + c.Value[1:]
			r.AddCookie(c)
		}
		_, err = m.GetSigned(r, "session")
		require.ErrorIs(t, err, cookie.ErrBadSig)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		t.Parallel()

		signer, err := cookie.New(cookie.WithSecret(testSecret))
		require.NoError(t, err)
		verifier, err := cookie.New(cookie.WithSecret("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		require.NoError(t, signer.SetSigned(w, "session", "token-value", 0))

		_, err = verifier.GetSigned(roundTrip(t, w), "session")
		require.ErrorIs(t, err, cookie.ErrBadSig)
	})

	t.Run("unsigned garbage is rejected", func(t *testing.T) {
		t.Parallel()

		m, err := cookie.New(cookie.WithSecret(testSecret))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		m.Set(w, "session", "no-signature-here", 0)

		_, err = m.GetSigned(roundTrip(t, w), "session")
		require.ErrorIs(t, err, cookie.ErrBadSig)
	})

	t.Run("signing requires a secret", func(t *testing.T) {
		t.Parallel()

		m, err := cookie.New()
		require.NoError(t, err)

		require.ErrorIs(t, m.SetSigned(httptest.NewRecorder(), "session", "v", 0), cookie.ErrNoSecret)
		_, err = m.GetSigned(httptest.NewRequest("GET", "/", nil), "session")
		require.ErrorIs(t, err, cookie.ErrNoSecret)
	})

	t.Run("short secret fails construction", func(t *testing.T) {
		t.Parallel()

		_, err := cookie.New(cookie.WithSecret("too-short"))
		require.ErrorIs(t, err, cookie.ErrBadSecret)
	})
}

func TestManagerDelete(t *testing.T) {
	t.Parallel()

	m, err := cookie.New()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Delete(w, "session")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Negative(t, cookies[0].MaxAge)
	require.Empty(t, cookies[0].Value)
}

func TestManagerAttributes(t *testing.T) {
	t.Parallel()

	m, err := cookie.New(
		cookie.WithDomain("shop.example.com"),
		cookie.WithPath("/app"),
		cookie.WithSecure(true),
		cookie.WithSameSite(http.SameSiteStrictMode),
	)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Set(w, "session", "v", 60)

	c := w.Result().Cookies()[0]
	require.Equal(t, "shop.example.com", c.Domain)
	require.Equal(t, "/app", c.Path)
	require.True(t, c.Secure)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
}
