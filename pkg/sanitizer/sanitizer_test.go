package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bazaarlabs/bazaar/pkg/sanitizer"
)

func TestPlain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Handmade Mug", sanitizer.Plain("  <b>Handmade Mug</b>  "))
	require.Equal(t, "alert(1)", sanitizer.Plain("<script>alert(1)</script>"))
	require.Empty(t, sanitizer.Plain("<img src=x onerror=alert(1)>"))
}

func TestMarkup(t *testing.T) {
	t.Parallel()

	t.Run("keeps basic formatting", func(t *testing.T) {
		t.Parallel()

		in := "<p>Hand-thrown <strong>stoneware</strong> mug.</p><ul><li>350ml</li></ul>"
		require.Equal(t, in, sanitizer.Markup(in))
	})

	t.Run("strips scripts and handlers", func(t *testing.T) {
		t.Parallel()

		out := sanitizer.Markup(`<p onclick="steal()">hi</p><script>steal()</script>`)
		require.Equal(t, "<p>hi</p>", out)
	})

	t.Run("neutralizes javascript links", func(t *testing.T) {
		t.Parallel()

		out := sanitizer.Markup(`<a href="javascript:steal()">click</a>`)
		require.NotContains(t, out, "javascript:")
	})

	t.Run("links get nofollow", func(t *testing.T) {
		t.Parallel()

		out := sanitizer.Markup(`<a href="https://example.com">shop</a>`)
		require.Contains(t, out, `rel="nofollow"`)
	})
}
