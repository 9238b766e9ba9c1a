package dispatch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func appendStep(trace *[]string, name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) (*Response, error) {
			*trace = append(*trace, name+":before")
			resp, err := next(c)
			*trace = append(*trace, name+":after")
			return resp, err
		}
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	t.Run("steps run in registration order around the terminal", func(t *testing.T) {
		t.Parallel()

		var trace []string
		ch := NewChain(appendStep(&trace, "a"))
		ch.Use(appendStep(&trace, "b"), appendStep(&trace, "c"))

		resp, err := ch.Run(newTestContext("GET", "/"), func(c *Context) (*Response, error) {
			trace = append(trace, "terminal")
			return Text(200, "done"), nil
		})
		require.NoError(t, err)
		require.Equal(t, "done", string(resp.Body))
		require.Equal(t, []string{
			"a:before", "b:before", "c:before",
			"terminal",
			"c:after", "b:after", "a:after",
		}, trace)
	})

	t.Run("a step that skips next terminates the request", func(t *testing.T) {
		t.Parallel()

		terminalRan := false
		halt := Middleware(func(next HandlerFunc) HandlerFunc {
			return func(c *Context) (*Response, error) {
				return Text(http.StatusForbidden, "blocked"), nil
			}
		})

		ch := NewChain(halt, appendStep(&[]string{}, "unreached"))
		resp, err := ch.Run(newTestContext("GET", "/"), func(c *Context) (*Response, error) {
			terminalRan = true
			return Text(200, "done"), nil
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.False(t, terminalRan)
	})

	t.Run("empty chain runs the terminal directly", func(t *testing.T) {
		t.Parallel()

		ch := NewChain()
		resp, err := ch.Run(newTestContext("GET", "/"), named("bare"))
		require.NoError(t, err)
		require.Equal(t, "bare", string(resp.Body))
	})

	t.Run("step errors propagate to the caller", func(t *testing.T) {
		t.Parallel()

		ch := NewChain(func(next HandlerFunc) HandlerFunc {
			return func(c *Context) (*Response, error) {
				resp, err := next(c)
				if err != nil {
					return nil, err
				}
				return resp.WithHeader("X-Step", "ran"), nil
			}
		})
		resp, err := ch.Run(newTestContext("GET", "/"), named("ok"))
		require.NoError(t, err)
		require.Equal(t, "ran", resp.Header.Get("X-Step"))
	})
}
