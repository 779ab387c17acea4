package domain

import "fmt"

// HexIDLength is the exact length of registry object identifiers.
const HexIDLength = 24

// IsHexID reports whether s is a well-formed 24-character hexadecimal
// object identifier. Case is accepted on input; identifiers generated by
// the registry and the offline mirror are always lowercase.
func IsHexID(s string) bool {
	if len(s) != HexIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ValidateHexID returns a ValidationError naming the offending field when
// value is not a well-formed object identifier. Malformed identifiers are
// rejected client-side, never forwarded to the registry.
func ValidateHexID(field, value string) error {
	if !IsHexID(value) {
		return Validationf("please provide a valid hexadecimal value for %s", field)
	}
	return nil
}

// FormatHexID renders a non-negative integer as a zero-padded 24-character
// lowercase hexadecimal identifier, the form used by the offline mirror's
// deterministic id generator.
func FormatHexID(n uint64) string {
	return fmt.Sprintf("%024x", n)
}
