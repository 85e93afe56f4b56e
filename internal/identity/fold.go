// Package identity matches profiles against configured identity aliases.
// All comparisons run on folded text: diacritics stripped, lower case, trimmed.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, removes combining marks and trims it.
// "Hồng Nhung" folds to "hong nhung". The Vietnamese đ is a base letter,
// not a combining mark, so it is kept as is.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(s)
	out, _, err := transform.String(t, lower)
	if err != nil {
		out = lower
	}
	return strings.TrimSpace(out)
}
