package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	EmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// PhoneRegex accepts digits with the usual separators and an optional leading +
	PhoneRegex = regexp.MustCompile(`^\+?[0-9 ().\-]{7,20}$`)
)

// ValidateEmail validates email address
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePhone validates an optional phone number
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !PhoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number format")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	length := utf8.RuneCountInString(strings.TrimSpace(s))
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}

// ValidateOneOf checks that value is empty or one of allowed
func ValidateOneOf(value string, allowed []string, fieldName string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s (must be one of %s)", fieldName, strings.Join(allowed, ", "))
}

// ValidateSource validates a Content-Security-Policy source expression
// configured by an operator. Keywords must be quoted; hosts must parse.
func ValidateSource(src string) error {
	if src == "" {
		return fmt.Errorf("source is empty")
	}
	if strings.ContainsAny(src, " ;,\"\r\n") {
		return fmt.Errorf("source %q contains forbidden characters", src)
	}
	if strings.HasPrefix(src, "'") {
		if !strings.HasSuffix(src, "'") || len(src) < 3 {
			return fmt.Errorf("source %q has unbalanced quotes", src)
		}
		return nil
	}
	if strings.HasSuffix(src, ":") {
		return nil // scheme source such as data: or wss:
	}
	u, err := url.Parse(src)
	if err != nil {
		return fmt.Errorf("invalid source %q: %w", src, err)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid source scheme in %q", src)
	}
	return nil
}
