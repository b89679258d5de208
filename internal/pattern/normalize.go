package pattern

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a raw item label: NFC composition, underscores
// to spaces, collapsed whitespace and lowercased Latin letters. Hangul is
// left untouched by the lowercase mapping.
func Normalize(label string) string {
	s := norm.NFC.String(label)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	// Casers keep state, so one per call.
	return cases.Lower(language.Und).String(s)
}

// runeLen counts characters rather than bytes so Hangul labels compare
// sensibly against their Latin counterparts.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
