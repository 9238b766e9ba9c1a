// Package slug builds URL-safe identifiers for products and vendor shops.
// Diacritics normalize to ASCII, everything else non-alphanumeric collapses
// into separators.
package slug

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// stripMarks decomposes to NFD, drops the combining marks, and recomposes,
// so "Café" becomes "Cafe".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

type config struct {
	reserved  map[string]struct{}
	maxLength int
	suffixLen int
}

// Option configures slug generation.
type Option func(*config)

// MaxLength truncates the slug to at most n runes, never mid-word when a
// separator is available to cut at.
func MaxLength(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// WithSuffix appends a random alphanumeric suffix of length n, for
// collision resistance when slugs come from user-chosen names.
func WithSuffix(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.suffixLen = n
		}
	}
}

// Reserved declares slugs that must not be produced bare; a random suffix is
// appended when the input collides with one, so a shop named "admin" cannot
// shadow the admin routes.
func Reserved(slugs ...string) Option {
	return func(c *config) {
		if c.reserved == nil {
			c.reserved = make(map[string]struct{}, len(slugs))
		}
		for _, s := range slugs {
			c.reserved[strings.ToLower(s)] = struct{}{}
		}
	}
}

// Make converts s into a slug.
func Make(s string, opts ...Option) string {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if normalized, _, err := transform.String(stripMarks, s); err == nil {
		s = normalized
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSep := true // suppress a leading separator
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "-")

	if cfg.maxLength > 0 {
		out = truncate(out, cfg.maxLength)
	}

	if _, taken := cfg.reserved[out]; taken && cfg.suffixLen == 0 {
		cfg.suffixLen = 6
	}
	if cfg.suffixLen > 0 {
		if out == "" {
			out = randomSuffix(cfg.suffixLen)
		} else {
			out += "-" + randomSuffix(cfg.suffixLen)
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, "-")
}

func randomSuffix(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixAlphabet))))
		if err != nil {
			idx = big.NewInt(0)
		}
		b.WriteByte(suffixAlphabet[idx.Int64()])
	}
	return b.String()
}
