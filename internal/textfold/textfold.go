// Package textfold normalizes free text for case- and accent-insensitive matching.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics and case-folds s, so "Beyoncé" and "BEYONCE" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(out))
}

// Words folds s and splits it on whitespace and punctuation.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// ContainsAll reports whether every word of query occurs in the folded haystack.
func ContainsAll(haystack string, query []string) bool {
	h := Fold(haystack)
	for _, w := range query {
		if !strings.Contains(h, w) {
			return false
		}
	}
	return true
}
