// Package slug derives URL-safe identifiers from topic labels.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent decomposes characters and strips combining marks, so "Café" and
// "Cafe" slugify identically.
var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make lower-cases the label and collapses every run of non-alphanumeric
// characters into a single hyphen. Leading and trailing hyphens are dropped.
func Make(label string) string {
	if folded, _, err := transform.String(deaccent, label); err == nil {
		label = folded
	}

	label = strings.ToLower(label)

	var b strings.Builder

	b.Grow(len(label))

	pendingHyphen := false

	for _, r := range label {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0

			continue
		}

		if pendingHyphen {
			b.WriteByte('-')

			pendingHyphen = false
		}

		b.WriteRune(r)
	}

	return b.String()
}
