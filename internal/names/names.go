// Package names builds normalized comparison keys for identity display
// fields, so "Jiří  Novák" and "jiri novak" merge to the same catalog entry.
package names

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

// Normalize lowercases, trims, and strips diacritics from a single field.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(RemoveDiacritics(s)))
}

// PersonKey returns the exact-duplicate merge key for a person.
func PersonKey(fullName, shortName string) string {
	return Normalize(fullName) + "\x00" + Normalize(shortName)
}

// DogKey returns the exact-duplicate merge key for a dog.
func DogKey(name, breed, owner string) string {
	return Normalize(name) + "\x00" + Normalize(breed) + "\x00" + Normalize(owner)
}
