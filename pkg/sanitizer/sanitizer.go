// Package sanitizer strips dangerous markup from user-submitted content.
// Product descriptions and vendor profiles accept limited formatting;
// everything else (names, review text, search queries) is reduced to plain
// text before storage.
package sanitizer

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainPolicy  *bluemonday.Policy
	markupPolicy *bluemonday.Policy
	once         sync.Once
)

func policies() {
	once.Do(func() {
		plainPolicy = bluemonday.StrictPolicy()

		markupPolicy = bluemonday.NewPolicy()
		markupPolicy.AllowStandardURLs()
		markupPolicy.AllowElements(
			"p", "br",
			"strong", "b", "em", "i",
			"ul", "ol", "li",
			"h3", "h4",
			"blockquote",
		)
		markupPolicy.AllowAttrs("href").OnElements("a")
		markupPolicy.RequireNoFollowOnLinks(true)
	})
}

// Plain strips all markup and collapses surrounding whitespace. Use for
// single-line fields such as names and titles.
func Plain(s string) string {
	policies()
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}

// Markup keeps basic formatting (paragraphs, emphasis, lists, links) and
// removes scripts, event handlers, and javascript: URLs. Use for product
// descriptions and vendor profiles.
func Markup(s string) string {
	policies()
	return markupPolicy.Sanitize(s)
}
