// Package textutil holds the token helpers used by cache keys, corroboration
// and gap deduplication.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics ("Atração" -> "atracao").
func Fold(s string) string {
	lower := strings.ToLower(s)
	// transformers carry state; build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// Tokens splits folded text on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// LeadingToken returns the first token of s, or "" when s has none.
func LeadingToken(s string) string {
	toks := Tokens(s)
	if len(toks) == 0 {
		return ""
	}
	return toks[0]
}

// ContainsToken reports whether tok is one of the tokens of s.
func ContainsToken(s, tok string) bool {
	if tok == "" {
		return false
	}
	for _, t := range Tokens(s) {
		if t == tok {
			return true
		}
	}
	return false
}

// Normalize canonicalizes free text for use in keys: folded tokens joined by
// single spaces.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}
