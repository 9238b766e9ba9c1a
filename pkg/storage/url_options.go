package storage

import "time"

// URLOption configures URL generation.
type URLOption func(*urlOptions)

type urlOptions struct {
	downloadName string
	expiry       time.Duration
	forcePublic  bool
}

// DefaultURLExpiry applies to signed URLs when no expiry is given.
const DefaultURLExpiry = 15 * time.Minute

// WithExpiry sets the signed URL lifetime.
func WithExpiry(d time.Duration) URLOption {
	return func(o *urlOptions) {
		if d > 0 {
			o.expiry = d
		}
	}
}

// WithDownload adds a Content-Disposition attachment header so browsers
// save the object under the given filename. Implies a signed URL.
func WithDownload(filename string) URLOption {
	return func(o *urlOptions) {
		o.downloadName = filename
	}
}

// WithPublic returns the unsigned public URL. Only useful for objects
// uploaded with ACLPublicRead or buckets configured for public access.
func WithPublic() URLOption {
	return func(o *urlOptions) {
		o.forcePublic = true
	}
}
