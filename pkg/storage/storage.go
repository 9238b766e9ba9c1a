// Package storage uploads marketplace files to S3-compatible object
// storage. Product images are the primary workload: uploads are sniffed
// for their real MIME type, optionally validated (size limits, image-only),
// and stored under unique ULID keys so vendor-supplied filenames never
// reach the bucket.
//
// Basic usage:
//
//	files, err := storage.New(storage.Config{
//		Bucket:    "bazaar-media",
//		AccessKey: os.Getenv("S3_ACCESS_KEY"),
//		SecretKey: os.Getenv("S3_SECRET_KEY"),
//	})
//
//	info, err := storage.PutFile(ctx, files, fh,
//		storage.WithPrefix("products"),
//		storage.WithACL(storage.ACLPublicRead),
//		storage.WithValidation(storage.ImageOnly(), storage.MaxSize(5<<20)),
//	)
//
// Validation failures surface as *FileValidationError so handlers can show
// the shopper a message instead of a generic upload error.
package storage

import (
	"context"
	"io"
)

// Storage is the object store contract the marketplace depends on.
type Storage interface {
	// Put streams data into the bucket and returns the stored file's
	// metadata. Without WithKey the key is generated from the prefix and
	// a fresh ULID.
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// URL returns an access URL for the object: signed by default,
	// or the public/CDN form with WithPublic.
	URL(ctx context.Context, key string, opts ...URLOption) (string, error)
}

// Config holds S3 connection settings. Endpoint and PathStyle exist for
// MinIO and other S3-compatible services used in development.
type Config struct {
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	Region     string
	PublicURL  string // CDN prefix for public objects; falls back to the S3 URL
	DefaultACL ACL
	PathStyle  bool
}

// FileInfo describes a stored object.
type FileInfo struct {
	Key         string
	ContentType string
	ACL         ACL
	Size        int64
}

// ACL is the canned access level applied to an uploaded object.
type ACL string

const (
	// ACLPrivate restricts access to signed URLs.
	ACLPrivate ACL = "private"

	// ACLPublicRead allows anonymous reads, used for product images.
	ACLPublicRead ACL = "public-read"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.DefaultACL == "" {
		c.DefaultACL = ACLPrivate
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
