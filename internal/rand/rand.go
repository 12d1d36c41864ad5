// Package rand generates random identifiers that are safe to hand to clients.
package rand

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateString generates a cryptographically-secure, URL-safe value from n
// random bytes. If the value is unable to be generated an error is returned.
func GenerateString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("while reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
