package mailer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	t.Run("metadata and body", func(t *testing.T) {
		t.Parallel()

		meta, body, err := splitFrontMatter([]byte("---\nsubject: Welcome\ntag: onboarding\n---\n# Hello\n"))
		require.NoError(t, err)
		require.Equal(t, "Welcome", meta["subject"])
		require.Equal(t, "onboarding", meta["tag"])
		require.Equal(t, "# Hello\n", body)
	})

	t.Run("no front matter", func(t *testing.T) {
		t.Parallel()

		meta, body, err := splitFrontMatter([]byte("# Hello\n"))
		require.NoError(t, err)
		require.Empty(t, meta)
		require.Equal(t, "# Hello\n", body)
	})

	t.Run("empty front matter block", func(t *testing.T) {
		t.Parallel()

		meta, body, err := splitFrontMatter([]byte("---\n---\nbody"))
		require.NoError(t, err)
		require.Empty(t, meta)
		require.Equal(t, "body", body)
	})

	t.Run("unterminated front matter", func(t *testing.T) {
		t.Parallel()

		_, _, err := splitFrontMatter([]byte("---\nsubject: Welcome\n"))
		require.ErrorIs(t, err, ErrFrontMatter)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		_, _, err := splitFrontMatter([]byte("---\n: : :\n---\nbody"))
		require.ErrorIs(t, err, ErrFrontMatter)
	})

	t.Run("windows line endings", func(t *testing.T) {
		t.Parallel()

		meta, body, err := splitFrontMatter([]byte("---\r\nsubject: Hi\r\n---\r\nbody"))
		require.NoError(t, err)
		require.Equal(t, "Hi", meta["subject"])
		require.Equal(t, "body", body)
	})
}
