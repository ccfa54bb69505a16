// Package sanitizer cleans user supplied comment text.
package sanitizer

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// HTMLSanitizer keeps user generated content markup such as paragraphs, links
// and emphasis, and drops scripts, styles and event handler attributes.
// Text reads as typed: quotes, apostrophes and bare ampersands are not
// turned into entities.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer creates a sanitizer backed by the UGC policy.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &HTMLSanitizer{policy: p}
}

// Sanitize returns raw with disallowed markup removed. The policy is safe for
// concurrent use.
func (s *HTMLSanitizer) Sanitize(raw string) string {
	return restoreText(s.policy.Sanitize(raw))
}

// entityStart matches an ampersand a browser could read as a character
// reference.
var entityStart = regexp.MustCompile(`&([#0-9A-Za-z])`)

var angleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// restoreText re-emits the text nodes of clean with only the escaping HTML
// needs. Tags and attribute values keep bluemonday's encoding.
func restoreText(clean string) string {
	z := html.NewTokenizer(strings.NewReader(clean))
	var b strings.Builder
	b.Grow(len(clean))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(escapeText(string(z.Text())))
		default:
			b.Write(z.Raw())
		}
	}
}

func escapeText(s string) string {
	return angleEscaper.Replace(entityStart.ReplaceAllString(s, "&amp;$1"))
}
