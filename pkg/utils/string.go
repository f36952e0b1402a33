package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString removes every control character and trims whitespace.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// SanitizeMultiline is SanitizeString that keeps newlines and tabs, for
// stack traces and free-text messages.
func SanitizeMultiline(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most maxRunes runes. Invalid UTF-8 is replaced first
// so the result is always valid.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	i := 0
	for pos := range s {
		if i == maxRunes {
			return s[:pos]
		}
		i++
	}
	return s
}

// TruncateString truncates a string to max runes, marking the cut with "...".
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return Truncate(s, maxLen)
	}
	return Truncate(s, maxLen-3) + "..."
}

// NormalizeEmail normalizes an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskEmail hides the local part of an address for logging. Input with no
// local part is masked one star per rune.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return MaskSensitive(email, 0)
	}
	return MaskSensitive(email[:at], 1) + email[at:]
}

// MaskSensitive masks sensitive information
func MaskSensitive(s string, visibleChars int) string {
	runes := []rune(s)
	if len(runes) <= visibleChars {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:visibleChars]) + strings.Repeat("*", len(runes)-visibleChars)
}

// IsEmpty checks if string is empty or only whitespace
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
