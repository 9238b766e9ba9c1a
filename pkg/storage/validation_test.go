package storage

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireValidationCode(t *testing.T, err error, code string) {
	t.Helper()

	var verr *FileValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, code, verr.Code)
}

func TestMaxSize(t *testing.T) {
	t.Parallel()

	rule := MaxSize(1024)

	require.NoError(t, rule.Validate(&multipart.FileHeader{Size: 1024}, ""))
	requireValidationCode(t, rule.Validate(&multipart.FileHeader{Size: 1025}, ""), ErrCodeFileTooLarge)
}

func TestMinSize(t *testing.T) {
	t.Parallel()

	rule := MinSize(100)

	require.NoError(t, rule.Validate(&multipart.FileHeader{Size: 100}, ""))
	requireValidationCode(t, rule.Validate(&multipart.FileHeader{Size: 99}, ""), ErrCodeFileTooSmall)
}

func TestNotEmpty(t *testing.T) {
	t.Parallel()

	rule := NotEmpty()

	require.NoError(t, rule.Validate(&multipart.FileHeader{Size: 1}, ""))
	requireValidationCode(t, rule.Validate(&multipart.FileHeader{Size: 0}, ""), ErrCodeEmptyFile)
	requireValidationCode(t, rule.Validate(nil, ""), ErrCodeEmptyFile)
}

func TestAllowedTypes(t *testing.T) {
	t.Parallel()

	rule := AllowedTypes("image/*", "application/pdf")

	require.NoError(t, rule.Validate(nil, "image/webp"))
	require.NoError(t, rule.Validate(nil, "application/pdf"))
	requireValidationCode(t, rule.Validate(nil, "text/html"), ErrCodeInvalidMIME)
}

func TestImageOnly(t *testing.T) {
	t.Parallel()

	rule := ImageOnly()

	require.NoError(t, rule.Validate(nil, "image/png"))
	requireValidationCode(t, rule.Validate(nil, "application/pdf"), ErrCodeInvalidMIME)
}

func TestValidateFileStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	fh := &multipart.FileHeader{Size: 10 << 20}
	err := ValidateFile(fh, "application/pdf", MaxSize(5<<20), ImageOnly())

	requireValidationCode(t, err, ErrCodeFileTooLarge)
}

func TestValidateReader(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateReader(512, "image/png", MaxSize(1024), ImageOnly()))
	requireValidationCode(t, ValidateReader(2048, "image/png", MaxSize(1024)), ErrCodeFileTooLarge)
}
