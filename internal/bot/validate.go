package bot

import (
	"regexp"
	"strings"
)

// vinPattern accepts the 17 characters of a modern VIN. The letters I, O
// and Q are excluded, they are never used to avoid confusion with digits.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

const minContactLength = 5

// NormalizeVIN trims and uppercases raw user input before validation.
func NormalizeVIN(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidVIN reports whether the normalized value is a well-formed VIN.
func ValidVIN(vin string) bool {
	return vinPattern.MatchString(vin)
}

// ValidContact applies a light plausibility check. Anything that short
// cannot be a phone number or an email address.
func ValidContact(contact string) bool {
	return len(strings.TrimSpace(contact)) >= minContactLength
}
