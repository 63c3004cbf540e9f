// Package identity canonicalizes phone-number-like identifiers so the same
// person matches across the message store and the contact databases.
package identity

import "strings"

// keyDigits is the number of trailing digits kept for numeric identifiers.
// Ten digits drops country codes and trunk prefixes for NANP numbers.
const keyDigits = 10

// Key returns the matching key for an identifier. Every non-digit is
// stripped; if at least ten digits remain the key is the last ten of them,
// otherwise the identifier is returned untouched (email handles, short codes).
//
// Keys are for matching only. They are never displayed or persisted as a
// contact's identifier.
func Key(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		if c := id[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	digits := b.String()
	if len(digits) < keyDigits {
		return id
	}
	return digits[len(digits)-keyDigits:]
}

// Same reports whether two identifiers refer to the same party.
func Same(a, b string) bool {
	return Key(a) == Key(b)
}
