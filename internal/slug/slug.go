// Package slug derives URL-safe identifiers from display titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches anything that is not an ASCII word character, whitespace, or hyphen.
	disallowedRe = regexp.MustCompile(`[^\w\s-]+`)
	// Matches runs of whitespace and hyphens.
	separatorRe = regexp.MustCompile(`[\s-]+`)
)

// Make converts a title to a lowercase, hyphen-separated slug.
//
//	"Café com Leite!"   → "cafe-com-leite"
//	"  Go   Lang  "     → "go-lang"
//	"already-a-slug"    → "already-a-slug"
//	"日本語"             → ""
//
// Accented Latin letters keep their base letter; every other non-word
// character is dropped. Make is idempotent.
func Make(title string) string {
	if title == "" {
		return ""
	}

	// Decompose accented characters, then drop the combining marks.
	s := norm.NFD.String(title)
	s = strings.Map(func(r rune) rune {
		if r >= 0x0300 && r <= 0x036f {
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = disallowedRe.ReplaceAllString(s, "")
	s = separatorRe.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}
