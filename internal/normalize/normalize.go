// Package normalize provides utilities for normalizing user-supplied strings
// before they are used as index keys or search terms.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Email normalizes an email address for index lookups.
// Lowercases via Unicode case folding and trims surrounding whitespace, so
// "Reader@Example.COM " and "reader@example.com" resolve to the same account.
func Email(email string) string {
	folded := cases.Fold().String(strings.TrimSpace(email))
	return norm.NFC.String(folded)
}

// Tag normalizes a book tag for storage and faceting.
// Tags are compared case-insensitively and stored in folded form; interior
// whitespace collapses to single spaces.
func Tag(tag string) string {
	folded := cases.Fold().String(strings.TrimSpace(tag))
	return norm.NFC.String(collapseSpaces(folded))
}

// Tags normalizes a tag list, dropping empties and duplicates while
// preserving first-seen order.
func Tags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Tag(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DisplayName normalizes a user display name for presentation.
// Unlike Email and Tag it preserves case, only trimming and collapsing
// whitespace and applying NFC so visually identical names compare equal.
func DisplayName(name string) string {
	return norm.NFC.String(collapseSpaces(strings.TrimSpace(name)))
}

// Title applies title casing for display fallbacks (e.g. genre labels).
func Title(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// collapseSpaces replaces runs of whitespace with a single space.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
