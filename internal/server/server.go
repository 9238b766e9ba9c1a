// Package server hosts the dispatch core on net/http: it snapshots each
// inbound request, loads the visitor's session from a signed cookie, runs
// the middleware chain into the router, and writes the resulting response.
package server

import (
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/pkg/cookie"
	"github.com/bazaarlabs/bazaar/pkg/session"
)

// SessionCookie is the name of the signed cookie carrying the session token.
const SessionCookie = "bazaar_session"

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger uploads spill to temp files.
const maxMultipartMemory = 32 << 20

// Server adapts *http.Request to the dispatch core and *Response back to
// the wire. It implements http.Handler.
type Server struct {
	router   *dispatch.Router
	chain    *dispatch.Chain
	sessions *session.Manager
	cookies  *cookie.Manager
	logger   *slog.Logger
}

// New creates the HTTP host for a router and middleware chain.
func New(router *dispatch.Router, chain *dispatch.Chain, sessions *session.Manager, cookies *cookie.Manager, logger *slog.Logger) *Server {
	return &Server{
		router:   router,
		chain:    chain,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := s.snapshot(r)
	if err != nil {
		s.logger.WarnContext(r.Context(), "malformed request body",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	c := dispatch.NewContext(r.Context(), req, s.logger)
	s.loadSession(r, c)

	resp, err := s.chain.Run(c, s.router.Dispatch)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		resp = dispatch.Internal()
	}

	s.persistSession(w, r, c)
	s.write(w, r, resp)
}

// snapshot converts the net/http request into the dispatch core's
// immutable request value.
func (s *Server) snapshot(r *http.Request) (*dispatch.Request, error) {
	var files map[string]*multipart.FileHeader
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, err
		}
		files = make(map[string]*multipart.FileHeader)
		for field, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				files[field] = headers[0]
			}
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}

	return dispatch.NewRequest(r.Method, r.URL.RequestURI(),
		dispatch.WithForm(r.PostForm),
		dispatch.WithHeader(r.Header),
		dispatch.WithRemoteIP(clientIP(r)),
		dispatch.WithFiles(files),
	), nil
}

// loadSession attaches the caller's session when the signed cookie names a
// live one. A missing, tampered, or expired cookie leaves the context
// sessionless; the session middleware creates a fresh one.
func (s *Server) loadSession(r *http.Request, c *dispatch.Context) {
	token, err := s.cookies.GetSigned(r, SessionCookie)
	if err != nil {
		return
	}
	sess, err := s.sessions.Load(r.Context(), token)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "session load failed", slog.Any("error", err))
		return
	}
	if sess != nil {
		c.SetSession(sess)
	}
}

// persistSession saves session changes and refreshes the cookie. The cookie
// is rewritten on every response carrying a session so a rotated token
// always reaches the client.
func (s *Server) persistSession(w http.ResponseWriter, r *http.Request, c *dispatch.Context) {
	sess := c.Session()
	if sess == nil {
		return
	}
	if err := s.sessions.Save(r.Context(), sess); err != nil {
		s.logger.ErrorContext(r.Context(), "session save failed", slog.Any("error", err))
		return
	}
	maxAge := int(s.sessions.TTL().Seconds())
	if err := s.cookies.SetSigned(w, SessionCookie, sess.Token, maxAge); err != nil {
		s.logger.ErrorContext(r.Context(), "session cookie write failed", slog.Any("error", err))
	}
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, resp *dispatch.Response) {
	header := w.Header()
	for name, values := range resp.Header {
		header[name] = values
	}

	if resp.RedirectTo != "" {
		http.Redirect(w, r, resp.RedirectTo, resp.StatusCode)
		return
	}

	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 && r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

// clientIP resolves the caller's address, trusting X-Forwarded-For's first
// hop when a proxy set it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
