package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsBadURLs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := Open(ctx, Config{})
	require.ErrorIs(t, err, ErrEmptyURL)

	_, err = Open(ctx, Config{URL: "http://localhost:6379"})
	require.ErrorIs(t, err, ErrParseURL)

	_, err = Open(ctx, Config{URL: "redis://[invalid"})
	require.ErrorIs(t, err, ErrParseURL)
}

func TestOpenGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// TEST-NET-1 address, nothing listens there.
	_, err := Open(ctx, Config{
		URL:           "redis://192.0.2.1:6379",
		RetryAttempts: 1,
		RetryInterval: 10 * time.Millisecond,
		DialTimeout:   50 * time.Millisecond,
		ReadTimeout:   50 * time.Millisecond,
		WriteTimeout:  50 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrConnectionFailed)
}

func TestHealthcheckNilClient(t *testing.T) {
	t.Parallel()

	probe := Healthcheck(nil)
	require.ErrorIs(t, probe(context.Background()), ErrHealthcheckFailed)
}
