// Package phone canonicalizes phone numbers so that the differently
// formatted values stored by providers, imports and UI forms all map to
// the same lookup key.
package phone

import "strings"

// Normalize returns the canonical form of a phone number: a leading
// "+" followed by digits only. Formatting characters (spaces, dashes,
// dots, parentheses) are stripped and a "00" international prefix is
// rewritten to "+". A number with no digits normalizes to "".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			// kept implicitly; the prefix is re-applied below
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
			// formatting noise
		default:
			return ""
		}
	}

	digits := b.String()
	if digits == "" {
		return ""
	}
	digits = strings.TrimPrefix(digits, "00")
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// Valid reports whether raw normalizes to a plausible subscriber
// number. Seven digits is the shortest national number in use;
// fifteen is the E.164 ceiling.
func Valid(raw string) bool {
	n := Normalize(raw)
	if n == "" {
		return false
	}
	digits := len(n) - 1
	return digits >= 7 && digits <= 15
}
