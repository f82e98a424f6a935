// Package phone canonicalizes phone number strings into the stable keys
// used to index contacts and conversations. Every store lookup goes
// through Normalize; raw phone strings are never compared directly.
package phone

import "strings"

// Normalize strips every character that is not a decimal digit. It is
// total (never fails) and idempotent.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Mask returns a display placeholder for a contact without a display
// name: all but the last four digits hidden.
func Mask(key string) string {
	if len(key) <= 4 {
		return key
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
