package utils

import "strings"

// MaskEmail keeps the first character of the local part and the domain.
// "user@example.com" becomes "u***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) <= 1 {
		return local + "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// MaskSecret keeps a short prefix of a credential such as an API key or a
// signature header and hides the rest.
func MaskSecret(secret string) string {
	const keep = 4
	if len(secret) <= keep*2 {
		return "***"
	}
	return secret[:keep] + "***"
}
