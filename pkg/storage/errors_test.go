package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

func TestWrapS3Error(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "no such key code",
			err:  &smithy.GenericAPIError{Code: "NoSuchKey", Message: "key missing"},
			want: ErrNotFound,
		},
		{
			name: "not found code",
			err:  &smithy.GenericAPIError{Code: "NotFound", Message: "gone"},
			want: ErrNotFound,
		},
		{
			name: "access denied code",
			err:  &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"},
			want: ErrAccessDenied,
		},
		{
			name: "typed no such key",
			err:  &types.NoSuchKey{},
			want: ErrNotFound,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("operation failed: %w", &smithy.GenericAPIError{Code: "Forbidden"}),
			want: ErrAccessDenied,
		},
		{
			name: "unknown error uses fallback",
			err:  errors.New("connection reset"),
			want: ErrUploadFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := wrapS3Error(tc.err, ErrUploadFailed)
			require.ErrorIs(t, err, tc.want)
		})
	}
}
