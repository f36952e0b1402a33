package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed random id, e.g. "lead_3f6c...".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// GenerateLeadID generates a unique contact lead ID
func GenerateLeadID() string {
	return GenerateID("lead")
}

// GenerateAlertID generates a unique alert ID
func GenerateAlertID() string {
	return GenerateID("alert")
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return uuid.NewString()
}

// GenerateNonce returns a base64 encoded random value of n bytes for use in
// a Content-Security-Policy nonce.
func GenerateNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
