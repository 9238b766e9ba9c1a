package middlewares

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// csrfTokenKey is the session key the anti-forgery token lives under; the
// same name is used for the form field.
const csrfTokenKey = "_token"

// Session guarantees every request past this step carries a live session
// with an anti-forgery token seeded. The hosting layer attaches the
// session it loaded from the cookie; requests without one get a fresh
// anonymous session here.
func Session(manager *session.Manager) dispatch.Middleware {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c *dispatch.Context) (*dispatch.Response, error) {
			if c.Session() == nil {
				sess, err := manager.Create(c.Context())
				if err != nil {
					return nil, fmt.Errorf("middlewares: create session: %w", err)
				}
				c.SetSession(sess)
			}

			if _, err := session.Value[string](c.Session(), csrfTokenKey); err != nil {
				token, err := generateCSRFToken()
				if err != nil {
					return nil, fmt.Errorf("middlewares: generate csrf token: %w", err)
				}
				c.Session().SetValue(csrfTokenKey, token)
			}

			return next(c)
		}
	}
}

// CSRFToken returns the session's anti-forgery token for embedding in
// forms, or "" when no session is attached.
func CSRFToken(c *dispatch.Context) string {
	token, err := session.Value[string](c.Session(), csrfTokenKey)
	if err != nil {
		return ""
	}
	return token
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
