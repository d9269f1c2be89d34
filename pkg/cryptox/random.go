package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// StateSize is the number of random bytes in an OAuth state or OIDC nonce.
const StateSize = 32

// RandomString returns size random bytes as unpadded base64url.
func RandomString(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
