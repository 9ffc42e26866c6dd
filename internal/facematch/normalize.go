package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// CleanDisplayName trims a user-entered name, collapses inner whitespace and
// puts it in NFC form. This is the form stored as the identity's name.
func CleanDisplayName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
// Two names with the same normalized form refer to the same identity.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(CleanDisplayName(name))
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
