// Package fold normalises Spanish text for keyword matching.
package fold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Clorpirifós" matches "clorpirifos".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	return strings.ToLower(result)
}

// ContainsAny reports whether folded text contains any of the folded words.
func ContainsAny(text string, words ...string) bool {
	text = Fold(text)
	for _, word := range words {
		if word != "" && strings.Contains(text, Fold(word)) {
			return true
		}
	}

	return false
}
