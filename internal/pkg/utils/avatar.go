package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// GravatarURL builds the avatar URL for an email address. Gravatar accepts
// SHA-256 hashes of the normalized address.
func GravatarURL(email string, size int) string {
	if size <= 0 {
		size = 200
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := sha256.Sum256([]byte(normalized))

	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?s=%d&d=mp", hash, size)
}
