package dispatch

import (
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Request is an immutable-after-construction snapshot of one inbound HTTP
// call. It is created once per request by the hosting layer, consumed
// read-only by middleware and handlers, and discarded when the response is
// written. The router populates the path-parameter mapping exactly once,
// after a successful template match.
type Request struct {
	header   http.Header
	query    map[string]string
	form     map[string]string
	params   map[string]string
	files    map[string]*multipart.FileHeader
	method   string
	path     string
	target   string
	remoteIP string
}

// RequestOption configures a Request during construction.
type RequestOption func(*Request)

// WithForm sets the parsed body parameters.
func WithForm(form url.Values) RequestOption {
	return func(r *Request) {
		r.form = flatten(form)
	}
}

// WithHeader sets the request headers.
func WithHeader(h http.Header) RequestOption {
	return func(r *Request) {
		r.header = h
	}
}

// WithRemoteIP sets the client IP as resolved by the hosting layer.
func WithRemoteIP(ip string) RequestOption {
	return func(r *Request) {
		r.remoteIP = ip
	}
}

// WithFiles sets uploaded multipart files by form field name.
func WithFiles(files map[string]*multipart.FileHeader) RequestOption {
	return func(r *Request) {
		r.files = files
	}
}

// NewRequest builds a Request from a method and a request target
// (path with optional query string). The query string is stripped from the
// path and parsed into the query-parameter mapping.
func NewRequest(method, target string, opts ...RequestOption) *Request {
	path := target
	var query map[string]string
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path = target[:i]
		if vs, err := url.ParseQuery(target[i+1:]); err == nil {
			query = flatten(vs)
		}
	}

	r := &Request{
		method: method,
		path:   path,
		target: target,
		query:  query,
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Method returns the HTTP method. Matching is case-sensitive.
func (r *Request) Method() string { return r.method }

// Path returns the request path with the query string stripped.
func (r *Request) Path() string { return r.path }

// Target returns the original request target, query string included.
// Suitable for post-login redirects back to the requested page.
func (r *Request) Target() string { return r.target }

// Query returns the query parameter value by name.
// Duplicate keys resolve last-value-wins at construction time.
func (r *Request) Query(name string) string { return r.query[name] }

// QueryDefault returns the query parameter value or a default.
func (r *Request) QueryDefault(name, defaultValue string) string {
	if v, ok := r.query[name]; ok && v != "" {
		return v
	}
	return defaultValue
}

// Form returns the body parameter value by name.
// Duplicate keys resolve last-value-wins at construction time.
func (r *Request) Form(name string) string { return r.form[name] }

// HasForm reports whether a body parameter was submitted, even if empty.
func (r *Request) HasForm(name string) bool {
	_, ok := r.form[name]
	return ok
}

// Header returns the request header value by name, case-insensitively.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// Param returns the path parameter captured by the router.
// Returns the empty string before a successful route match.
func (r *Request) Param(name string) string { return r.params[name] }

// Params returns a copy of the captured path parameters.
func (r *Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	maps.Copy(out, r.params)
	return out
}

// File returns the uploaded file header for the given form field, or nil.
func (r *Request) File(name string) *multipart.FileHeader { return r.files[name] }

// RemoteIP returns the client IP as resolved by the hosting layer.
func (r *Request) RemoteIP() string { return r.remoteIP }

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string { return r.header.Get("User-Agent") }

// Referer returns the Referer header.
func (r *Request) Referer() string { return r.header.Get("Referer") }

// WantsJSON reports whether the caller asked for a JSON response, either via
// the Accept header or the X-Requested-With convention.
func (r *Request) WantsJSON() bool {
	if strings.Contains(r.header.Get("Accept"), "application/json") {
		return true
	}
	return strings.EqualFold(r.header.Get("X-Requested-With"), "xmlhttprequest")
}

// setParams installs the path parameters captured by the router.
// Called at most once per request, on the first structural match.
func (r *Request) setParams(params map[string]string) {
	r.params = params
}

// flatten collapses multi-valued parameters into a last-value-wins mapping.
func flatten(vs url.Values) map[string]string {
	m := make(map[string]string, len(vs))
	for k, v := range vs {
		if len(v) > 0 {
			m[k] = v[len(v)-1]
		} else {
			m[k] = ""
		}
	}
	return m
}
