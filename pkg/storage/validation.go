package storage

import (
	"fmt"
	"mime/multipart"
)

// FileValidationError reports why an upload was rejected before it
// reached the bucket.
type FileValidationError struct {
	Details map[string]any
	Field   string
	Code    string
	Message string
}

func (e *FileValidationError) Error() string {
	return e.Message
}

// Codes carried by FileValidationError.
const (
	ErrCodeFileTooLarge = "file_too_large"
	ErrCodeFileTooSmall = "file_too_small"
	ErrCodeInvalidMIME  = "invalid_mime"
	ErrCodeEmptyFile    = "empty_file"
)

// ValidationRule checks an upload against a single constraint. The MIME
// type is pre-sniffed from magic bytes so rules never trust the client.
type ValidationRule interface {
	Validate(fh *multipart.FileHeader, mimeType string) error
}

// ValidateFile runs rules in order and returns the first failure.
func ValidateFile(fh *multipart.FileHeader, mimeType string, rules ...ValidationRule) error {
	for _, rule := range rules {
		if err := rule.Validate(fh, mimeType); err != nil {
			return err
		}
	}
	return nil
}

// ValidateReader runs rules against raw reader metadata when no multipart
// header exists, for example uploads built from byte slices.
func ValidateReader(size int64, mimeType string, rules ...ValidationRule) error {
	return ValidateFile(&multipart.FileHeader{Size: size}, mimeType, rules...)
}

type maxSizeRule struct {
	maxBytes int64
}

// MaxSize rejects files larger than the given byte count.
func MaxSize(bytes int64) ValidationRule {
	return &maxSizeRule{maxBytes: bytes}
}

func (r *maxSizeRule) Validate(fh *multipart.FileHeader, _ string) error {
	if fh.Size > r.maxBytes {
		return &FileValidationError{
			Field:   "file",
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", fh.Size, r.maxBytes),
			Details: map[string]any{"limit": r.maxBytes, "got": fh.Size},
		}
	}
	return nil
}

type minSizeRule struct {
	minBytes int64
}

// MinSize rejects files smaller than the given byte count.
func MinSize(bytes int64) ValidationRule {
	return &minSizeRule{minBytes: bytes}
}

func (r *minSizeRule) Validate(fh *multipart.FileHeader, _ string) error {
	if fh.Size < r.minBytes {
		return &FileValidationError{
			Field:   "file",
			Code:    ErrCodeFileTooSmall,
			Message: fmt.Sprintf("file size %d is below minimum of %d bytes", fh.Size, r.minBytes),
			Details: map[string]any{"minimum": r.minBytes, "got": fh.Size},
		}
	}
	return nil
}

type notEmptyRule struct{}

// NotEmpty rejects missing or zero-byte uploads.
func NotEmpty() ValidationRule {
	return notEmptyRule{}
}

func (notEmptyRule) Validate(fh *multipart.FileHeader, _ string) error {
	if fh == nil || fh.Size == 0 {
		return &FileValidationError{
			Field:   "file",
			Code:    ErrCodeEmptyFile,
			Message: "file is empty",
			Details: map[string]any{},
		}
	}
	return nil
}

type allowedTypesRule struct {
	patterns []string
}

// AllowedTypes rejects files whose sniffed MIME type matches none of the
// patterns. Patterns may use wildcards such as "image/*".
func AllowedTypes(patterns ...string) ValidationRule {
	return &allowedTypesRule{patterns: patterns}
}

func (r *allowedTypesRule) Validate(_ *multipart.FileHeader, mimeType string) error {
	if !matchesMIME(mimeType, r.patterns) {
		return &FileValidationError{
			Field:   "file",
			Code:    ErrCodeInvalidMIME,
			Message: fmt.Sprintf("file type %q is not allowed", mimeType),
			Details: map[string]any{"type": mimeType, "allowed": r.patterns},
		}
	}
	return nil
}

// ImageOnly accepts only image uploads. Product and shop images use this.
func ImageOnly() ValidationRule {
	return AllowedTypes("image/*")
}
