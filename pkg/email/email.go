// Package email contains small, dependency-free helpers for working with the
// email addresses that drive admission decisions and notifications.
package email

import (
	"strings"
	"unicode"
)

// Domain extracts the normalized (lower-cased, trimmed) domain from an email
// address. The domain is the substring after the last '@'. Returns false for
// malformed addresses (no '@', or nothing on either side of it).
func Domain(address string) (string, bool) {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return "", false
	}
	domain := strings.ToLower(strings.TrimSpace(address[at+1:]))
	if domain == "" {
		return "", false
	}
	return domain, true
}

// DeriveNameFromEmail guesses a display name from the local part of an email
// address. Used for notification payloads when no profile name is available.
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
