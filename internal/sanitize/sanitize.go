// Package sanitize cleans user-typed text before it is sent upstream or
// echoed back. Uses bluemonday's strict policy so tag titles never carry
// markup, then decodes the entities the policy leaves behind so "Rock & Roll"
// stays readable.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for plain-text fields.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips every HTML element from input, drops control characters,
// and trims surrounding whitespace. The result is plain text, not
// HTML-escaped; templates escape it on output.
func Text(input string) string {
	if input == "" {
		return ""
	}
	stripped := html.UnescapeString(getPolicy().Sanitize(input))
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			if unicode.IsSpace(r) {
				return ' '
			}
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(stripped)
}

// Filter cleans list-filter text. It is Text without trimming, so typing a
// space between words does not get swallowed while the user is mid-word.
func Filter(input string) string {
	if input == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, html.UnescapeString(getPolicy().Sanitize(input)))
}
