package sender

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultCountryCode is applied to local numbers with no international
// prefix. Deployments outside Israel override it in configuration.
const DefaultCountryCode = "972"

// NormalizePhone converts a phone number as typed by a receptionist into
// E.164 for the SMS and WhatsApp providers.
//
// Separators (spaces, dashes, dots, parentheses) are stripped. A number
// already carrying its country code ("+972...", "00972..." or a bare
// "972...") keeps it. A local number loses its trunk zero and gains the
// given country code: "050-123-4567" becomes "+972501234567".
func NormalizePhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	trimmed := strings.TrimSpace(raw)
	international := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	num := digits.String()
	if num == "" {
		return "", fmt.Errorf("phone number %q contains no digits", raw)
	}

	// "00" is the international call prefix equivalent of "+".
	if !international && strings.HasPrefix(num, "00") {
		international = true
		num = strings.TrimPrefix(num, "00")
	}

	if international {
		return "+" + num, nil
	}

	num = strings.TrimPrefix(num, "0")
	if num == "" {
		return "", fmt.Errorf("phone number %q has no digits after trunk prefix", raw)
	}
	// A local number always starts with the trunk zero, so a digit string
	// starting with the country code already carries it.
	if strings.HasPrefix(num, countryCode) {
		return "+" + num, nil
	}
	return "+" + countryCode + num, nil
}
