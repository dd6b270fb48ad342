package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrKeyMismatch indicates the presented key does not match the stored hash.
var ErrKeyMismatch = errors.New("key does not match")

// HashAdminKey returns the bcrypt hash of an admin key.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hash), nil
}

// CompareAdminKey checks a presented key against a bcrypt hash.
func CompareAdminKey(hash, key string) error {
	if hash == "" || key == "" {
		return ErrKeyMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrKeyMismatch
		}
		return fmt.Errorf("failed to compare admin key: %w", err)
	}
	return nil
}
