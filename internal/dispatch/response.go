package dispatch

import (
	"encoding/json"
	"net/http"
)

// Response describes the outcome of one dispatch cycle: a status code, a
// header set, a body payload, or a redirect target. The dispatch core only
// produces this value; the hosting layer performs the actual network write.
type Response struct {
	Header     http.Header
	RedirectTo string
	Body       []byte
	StatusCode int
}

// Text returns a plain text response.
func Text(code int, body string) *Response {
	return &Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:       []byte(body),
	}
}

// HTML returns an HTML response.
func HTML(code int, body string) *Response {
	return &Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}
}

// JSON returns a JSON response with the marshaled value as body.
// A value that cannot be marshaled yields a 500 response instead.
func JSON(code int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Internal()
	}
	return &Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:       body,
	}
}

// Redirect returns a redirect response to the given target.
func Redirect(code int, target string) *Response {
	return &Response{
		StatusCode: code,
		Header:     make(http.Header),
		RedirectTo: target,
	}
}

// SeeOther returns a 303 redirect, the conventional answer to a form post.
func SeeOther(target string) *Response {
	return Redirect(http.StatusSeeOther, target)
}

// NotFound returns the canonical 404 response.
func NotFound() *Response {
	return Text(http.StatusNotFound, "Page not found")
}

// Internal returns the canonical 500 response.
func Internal() *Response {
	return Text(http.StatusInternalServerError, "Something went wrong")
}

// Attachment returns a file-download response with the given content type
// and suggested filename.
func Attachment(body []byte, contentType, filename string) *Response {
	h := http.Header{
		"Content-Type":        []string{contentType},
		"Content-Disposition": []string{`attachment; filename="` + filename + `"`},
	}
	return &Response{StatusCode: http.StatusOK, Header: h, Body: body}
}

// WithHeader returns the response with an additional header set.
func (r *Response) WithHeader(name, value string) *Response {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(name, value)
	return r
}

// IsRedirect reports whether the response is a redirect.
func (r *Response) IsRedirect() bool { return r.RedirectTo != "" }
