// Package sanitize strips markup from free-text fields before storage.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element from s and trims the result. Entities
// escaped by the policy are decoded again so plain text round-trips.
func Text(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Optional applies Text to a nullable field, returning nil when nothing
// remains.
func Optional(s *string) *string {
	if s == nil {
		return nil
	}
	out := Text(*s)
	if out == "" {
		return nil
	}
	return &out
}
