package abacatepay

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxDescriptionLen is the provider's limit for PIX charge descriptions
const maxDescriptionLen = 30

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeDescription strips accents and punctuation from a charge
// description and truncates it to the provider's limit
func SanitizeDescription(s string) string {
	plain, _, err := transform.String(stripAccents, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if r := []rune(out); len(r) > maxDescriptionLen {
		out = strings.TrimSpace(string(r[:maxDescriptionLen]))
	}
	return out
}

// DigitsOnly strips everything but decimal digits, used for phone and
// tax id normalization
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
