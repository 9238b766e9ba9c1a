package storage

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// MIMEOctetStream is reported when content sniffing cannot classify a file.
const MIMEOctetStream = "application/octet-stream"

// http.DetectContentType inspects at most this many bytes.
const sniffLen = 512

var imageTypes = map[string]struct{}{
	"image/jpeg":    {},
	"image/png":     {},
	"image/gif":     {},
	"image/webp":    {},
	"image/svg+xml": {},
	"image/bmp":     {},
	"image/avif":    {},
}

// Preferred extensions for the content types the marketplace stores.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/bmp":       ".bmp",
	"image/avif":      ".avif",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"text/csv":        ".csv",
	"application/zip": ".zip",
}

// DetectMIME sniffs the content type of an uploaded file from its magic
// bytes, ignoring the client-supplied filename and Content-Type header.
func DetectMIME(fh *multipart.FileHeader) string {
	if fh == nil {
		return MIMEOctetStream
	}

	f, err := fh.Open()
	if err != nil {
		return MIMEOctetStream
	}
	defer f.Close()

	return sniffMIME(f)
}

// ExtFromMIME returns the preferred file extension for a MIME type, or ""
// when the type is not recognized.
func ExtFromMIME(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// IsImage reports whether the uploaded file's magic bytes identify it as
// an image.
func IsImage(fh *multipart.FileHeader) bool {
	_, ok := imageTypes[normalizeMIME(DetectMIME(fh))]
	return ok
}

func sniffMIME(r io.Reader) string {
	buf := make([]byte, sniffLen)
	n, err := r.Read(buf)
	if err != nil && n == 0 {
		return MIMEOctetStream
	}
	return http.DetectContentType(buf[:n])
}

// sniffMIMEWithReader sniffs the content type and hands back a seekable
// reader positioned at the start. The AWS SDK needs an io.ReadSeeker to
// compute the payload hash, so non-seekable input is buffered in memory.
func sniffMIMEWithReader(r io.Reader) (string, io.ReadSeeker) {
	if rs, ok := r.(io.ReadSeeker); ok {
		buf := make([]byte, sniffLen)
		n, _ := rs.Read(buf)
		_, _ = rs.Seek(0, io.SeekStart)
		if n > 0 {
			return http.DetectContentType(buf[:n]), rs
		}
		return MIMEOctetStream, rs
	}

	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return MIMEOctetStream, bytes.NewReader(nil)
	}
	return http.DetectContentType(data), bytes.NewReader(data)
}

// normalizeMIME strips parameters such as charset and lowercases the type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME reports whether mimeType matches any of the allowed
// patterns. Patterns may end in "/*" to match a whole class.
func matchesMIME(mimeType string, allowed []string) bool {
	mimeType = normalizeMIME(mimeType)
	for _, pattern := range allowed {
		pattern = strings.TrimSpace(strings.ToLower(pattern))
		if mimeType == pattern {
			return true
		}
		if strings.HasSuffix(pattern, "/*") &&
			strings.HasPrefix(mimeType, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}
