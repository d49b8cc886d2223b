// Package identity canonicalizes person names so that ACUSE, DEMANDA and
// spreadsheet rows can be joined on plain string equality.
package identity

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// danglingN matches an upper-case letter followed by a stray lower-case "n"
// and whitespace, which is how the upstream text layer renders "Ñ" in some
// filings (e.g. "MUn OZ" for "MUÑOZ").
var danglingN = regexp.MustCompile(`(\p{Lu})n\s+`)

// RestoreEnye rewrites the dangling-n artifact back to "Ñ".
//
// The rule only fires after an upper-case letter so that ordinary mixed-case
// names ("Juan Perez") pass through untouched.
func RestoreEnye(s string) string {
	return danglingN.ReplaceAllString(s, "${1}Ñ")
}

// StripDiacritics removes combining marks after canonical decomposition.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize returns the identity key for a raw name. It is total and
// idempotent.
func Normalize(name string) string {
	s := RestoreEnye(name)
	s = strings.ToUpper(s)
	// Some runes have no single-rune upper case and only lose their mark
	// here, so case is folded again.
	s = strings.ToUpper(StripDiacritics(s))
	return strings.Join(strings.Fields(s), " ")
}
