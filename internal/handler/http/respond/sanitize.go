package respond

import (
	"regexp"
)

var (
	// Bearer credentials as they appear in wrapped provider errors.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]+`)

	// Bare API keys passed as query or form parameters.
	apiKeyPattern = regexp.MustCompile(`(?i)(apikey|api_key|token)=[^&\s]+`)

	// Database passwords inside DSNs.
	dbPasswordPattern = regexp.MustCompile(`://([^:]+):([^@]+)@`)
)

// SanitizeError returns the error message with credential material masked,
// safe to write to logs.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = apiKeyPattern.ReplaceAllString(msg, "$1=****")
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
