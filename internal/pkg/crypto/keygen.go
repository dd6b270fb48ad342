// Package crypto provides identifier and key generation for FlexConvert.
package crypto

import (
	"crypto/rand"
	"fmt"
)

// Character sets for key generation
const (
	// shareIDChars contains characters used in share identifiers (mixed case alphanumeric).
	shareIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// ShareIDLength is the length of share identifiers.
	ShareIDLength = 12

	// AdminKeyLength is the length of generated admin keys.
	AdminKeyLength = 40
)

// GenerateShareID generates a random 12-character share identifier.
// Example: "aZ3kP9qLm2Xw"
func GenerateShareID() (string, error) {
	return generateRandomString(ShareIDLength, shareIDChars)
}

// GenerateAdminKey generates a random 40-character admin key.
func GenerateAdminKey() (string, error) {
	return generateRandomString(AdminKeyLength, shareIDChars)
}

// generateRandomString generates a random string of the specified length
// using characters from the provided character set.
// Bytes that would bias the distribution are discarded.
func generateRandomString(length int, charset string) (string, error) {
	result := make([]byte, 0, length)
	charsetLen := len(charset)
	limit := 256 - (256 % charsetLen)

	buf := make([]byte, length*2)
	for len(result) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			result = append(result, charset[int(b)%charsetLen])
			if len(result) == length {
				break
			}
		}
	}

	return string(result), nil
}
