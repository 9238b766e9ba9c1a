package storage

// Option configures a Put operation.
type Option func(*putOptions)

type putOptions struct {
	key             string
	prefix          string
	contentType     string
	acl             ACL
	validationRules []ValidationRule
}

// WithKey stores the object under an explicit key instead of a generated
// one. Use it to overwrite a known object in place.
func WithKey(key string) Option {
	return func(o *putOptions) {
		o.key = key
	}
}

// WithPrefix places the generated key under a path prefix, so
// WithPrefix("products") yields "products/{ulid}.{ext}".
func WithPrefix(prefix string) Option {
	return func(o *putOptions) {
		o.prefix = prefix
	}
}

// WithContentType overrides the sniffed content type. Prefer letting the
// magic-byte detection decide.
func WithContentType(ct string) Option {
	return func(o *putOptions) {
		o.contentType = ct
	}
}

// WithACL overrides the configured default ACL for this upload.
func WithACL(acl ACL) Option {
	return func(o *putOptions) {
		o.acl = acl
	}
}

// WithValidation runs the rules before uploading. A failing rule aborts
// the upload with a *FileValidationError.
func WithValidation(rules ...ValidationRule) Option {
	return func(o *putOptions) {
		o.validationRules = append(o.validationRules, rules...)
	}
}
