package middlewares_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/middlewares"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// okHandler is a terminal that records it ran.
func okHandler(ran *bool) dispatch.HandlerFunc {
	return func(c *dispatch.Context) (*dispatch.Response, error) {
		*ran = true
		return dispatch.Text(http.StatusOK, "ok"), nil
	}
}

func newContext(t *testing.T, method, target string, opts ...dispatch.RequestOption) *dispatch.Context {
	t.Helper()
	req := dispatch.NewRequest(method, target, opts...)
	return dispatch.NewContext(context.Background(), req, nil)
}

// withSession attaches a fresh session and returns its manager.
func withSession(t *testing.T, c *dispatch.Context) *session.Manager {
	t.Helper()
	manager := session.NewManager(session.NewMemoryStore())
	sess, err := manager.Create(context.Background())
	require.NoError(t, err)
	c.SetSession(sess)
	return manager
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates one when absent", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/")
		ran := false
		resp, err := middlewares.RequestID()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)

		rid := middlewares.RequestIDFrom(c)
		require.Len(t, rid, 26)
		require.Equal(t, rid, resp.Header.Get("X-Request-ID"))
	})

	t.Run("adopts inbound header", func(t *testing.T) {
		t.Parallel()

		hdr := http.Header{}
		hdr.Set("X-Correlation-ID", "upstream-42")
		c := newContext(t, http.MethodGet, "/", dispatch.WithHeader(hdr))

		ran := false
		resp, err := middlewares.RequestID()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Equal(t, "upstream-42", middlewares.RequestIDFrom(c))
		require.Equal(t, "upstream-42", resp.Header.Get("X-Request-ID"))
	})

	t.Run("extractor surfaces the id from context", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/")
		ran := false
		_, err := middlewares.RequestID(
			middlewares.WithRequestIDGenerator(func() string { return "fixed" }),
		)(okHandler(&ran))(c)
		require.NoError(t, err)

		attr, ok := middlewares.RequestIDExtractor()(c.Context())
		require.True(t, ok)
		require.Equal(t, "request_id", attr.Key)
		require.Equal(t, "fixed", attr.Value.String())
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	t.Run("panic becomes a 500 response", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/boom")
		h := middlewares.Recover()(func(c *dispatch.Context) (*dispatch.Response, error) {
			panic("kaboom")
		})
		resp, err := h(c)
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("passes normal responses through", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/")
		ran := false
		resp, err := middlewares.Recover()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("deadline exceeded maps to 504", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/slow")
		h := middlewares.Timeout(time.Millisecond)(func(c *dispatch.Context) (*dispatch.Response, error) {
			<-c.Context().Done()
			return nil, c.Context().Err()
		})
		resp, err := h(c)
		require.NoError(t, err)
		require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	})

	t.Run("fast handler unaffected", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/")
		ran := false
		resp, err := middlewares.Timeout(time.Second)(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestSession(t *testing.T) {
	t.Parallel()

	t.Run("creates a session when none attached", func(t *testing.T) {
		t.Parallel()

		manager := session.NewManager(session.NewMemoryStore())
		c := newContext(t, http.MethodGet, "/")
		ran := false
		_, err := middlewares.Session(manager)(okHandler(&ran))(c)
		require.NoError(t, err)
		require.NotNil(t, c.Session())
		require.NotEmpty(t, middlewares.CSRFToken(c))
	})

	t.Run("keeps the attached session and its token", func(t *testing.T) {
		t.Parallel()

		c := newContext(t, http.MethodGet, "/")
		manager := withSession(t, c)
		attached := c.Session()
		c.Session().SetValue("_token", "existing-token")

		ran := false
		_, err := middlewares.Session(manager)(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Same(t, attached, c.Session())
		require.Equal(t, "existing-token", middlewares.CSRFToken(c))
	})
}

func TestCSRF(t *testing.T) {
	t.Parallel()

	// seed sets up a context with a session carrying a known token.
	seed := func(t *testing.T, method, target string, opts ...dispatch.RequestOption) *dispatch.Context {
		t.Helper()
		c := newContext(t, method, target, opts...)
		withSession(t, c)
		c.Session().SetValue("_token", "good-token")
		return c
	}

	t.Run("safe methods pass without a token", func(t *testing.T) {
		t.Parallel()

		c := seed(t, http.MethodGet, "/cart")
		ran := false
		resp, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("matching form token passes", func(t *testing.T) {
		t.Parallel()

		c := seed(t, http.MethodPost, "/cart/add",
			dispatch.WithForm(url.Values{"_token": {"good-token"}}))
		ran := false
		_, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)
	})

	t.Run("matching header token passes", func(t *testing.T) {
		t.Parallel()

		hdr := http.Header{}
		hdr.Set("X-CSRF-Token", "good-token")
		c := seed(t, http.MethodPost, "/cart/add", dispatch.WithHeader(hdr))
		ran := false
		_, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)
	})

	t.Run("missing token bounces to referer with flash", func(t *testing.T) {
		t.Parallel()

		hdr := http.Header{}
		hdr.Set("Referer", "/cart")
		c := seed(t, http.MethodPost, "/cart/add", dispatch.WithHeader(hdr))
		ran := false
		resp, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.False(t, ran)
		require.Equal(t, "/cart", resp.RedirectTo)
		require.Equal(t, "Invalid security token. Please try again.", c.Flash(dispatch.FlashError))
	})

	t.Run("wrong token bounces to root without referer", func(t *testing.T) {
		t.Parallel()

		c := seed(t, http.MethodPost, "/cart/add",
			dispatch.WithForm(url.Values{"_token": {"evil"}}))
		ran := false
		resp, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.False(t, ran)
		require.Equal(t, "/", resp.RedirectTo)
	})

	t.Run("excluded webhook path passes without a token", func(t *testing.T) {
		t.Parallel()

		c := seed(t, http.MethodPost, "/webhook/stripe")
		ran := false
		_, err := middlewares.CSRF()(okHandler(&ran))(c)
		require.NoError(t, err)
		require.True(t, ran)
	})
}

// recordedAudit captures RecordAudit calls.
type recordedAudit struct {
	entries []string
	fail    error
}

func (r *recordedAudit) RecordAudit(_ context.Context, actorID, action string, _ []byte, _, _ string) error {
	if r.fail != nil {
		return r.fail
	}
	r.entries = append(r.entries, actorID+" "+action)
	return nil
}

// staticActor resolves to a fixed user, or nobody.
type staticActor struct {
	user *repository.User
}

func (a staticActor) CurrentUser(*dispatch.Context) (repository.User, bool) {
	if a.user == nil {
		return repository.User{}, false
	}
	return *a.user, true
}

func TestAudit(t *testing.T) {
	t.Parallel()

	admin := &repository.User{ID: "admin-1", Role: repository.RoleAdmin}

	t.Run("records state-changing authenticated requests", func(t *testing.T) {
		t.Parallel()

		rec := &recordedAudit{}
		c := newContext(t, http.MethodPost, "/admin/orders/status/42")
		ran := false
		_, err := middlewares.Audit(rec, staticActor{user: admin})(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Equal(t, []string{"admin-1 post:admin.orders.status.42"}, rec.entries)
	})

	t.Run("skips reads", func(t *testing.T) {
		t.Parallel()

		rec := &recordedAudit{}
		c := newContext(t, http.MethodGet, "/admin/orders")
		ran := false
		_, err := middlewares.Audit(rec, staticActor{user: admin})(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Empty(t, rec.entries)
	})

	t.Run("skips anonymous requests", func(t *testing.T) {
		t.Parallel()

		rec := &recordedAudit{}
		c := newContext(t, http.MethodPost, "/cart/add")
		ran := false
		_, err := middlewares.Audit(rec, staticActor{})(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Empty(t, rec.entries)
	})

	t.Run("recorder failure does not affect the response", func(t *testing.T) {
		t.Parallel()

		rec := &recordedAudit{fail: context.DeadlineExceeded}
		c := newContext(t, http.MethodPost, "/account/update")
		ran := false
		resp, err := middlewares.Audit(rec, staticActor{user: admin})(okHandler(&ran))(c)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
