package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateString shortens s to at most maxLen runes, ending in "..." when cut.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// MaskSensitive keeps the first visibleChars runes of s and replaces the rest
// with '*'. Empty input stays empty so "no secret" remains distinguishable.
func MaskSensitive(s string, visibleChars int) string {
	n := utf8.RuneCountInString(s)
	if visibleChars < 0 {
		visibleChars = 0
	}
	if n <= visibleChars {
		return strings.Repeat("*", n)
	}
	runes := []rune(s)
	return string(runes[:visibleChars]) + strings.Repeat("*", n-visibleChars)
}
