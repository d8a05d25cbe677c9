package services

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

const externalIDDigits = 5

// GenerateExternalUserID derives the marketing system id from a full name:
// first and last name token, lower case alphanumerics only, followed by five
// random digits. Two calls with the same name differ. Letters outside a-z
// are dropped, so a name without any yields the digits alone.
func GenerateExternalUserID(name string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		}
	}

	var b strings.Builder
	if tokens := strings.Fields(cleaned.String()); len(tokens) > 0 {
		b.WriteString(tokens[0])
		if len(tokens) > 1 {
			b.WriteString(tokens[len(tokens)-1])
		}
	}
	for i := 0; i < externalIDDigits; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
