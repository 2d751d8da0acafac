package textutil

import "unicode/utf8"

// TruncateBytes shortens s to at most maxBytes bytes. The cut backs off to
// the start of a rune, so the result is valid UTF-8 whenever s is.
func TruncateBytes(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
