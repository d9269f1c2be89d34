package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest secret accepted for key derivation.
const MinSecretLength = 32

var (
	// ErrWeakSecret is returned when the configured secret is too short.
	ErrWeakSecret = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)

	// ErrCiphertext is returned when sealed data is truncated or fails
	// authentication.
	ErrCiphertext = errors.New("invalid ciphertext")
)

// DeriveKey derives a size-byte key from secret using HKDF-SHA256. The info
// string separates keys used for different purposes from the same secret.
func DeriveKey(secret []byte, info string, size int) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Sealer encrypts and authenticates small payloads with XChaCha20-Poly1305.
// The output format is: [24-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer whose key is derived from secret and info.
func NewSealer(secret []byte, info string) (*Sealer, error) {
	key, err := DeriveKey(secret, info, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext, binding it to additionalData (which is
// authenticated but not stored).
func (s *Sealer) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return s.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open reverses Seal. Any tampering, truncation or mismatched
// additionalData yields ErrCiphertext.
func (s *Sealer) Open(sealed, additionalData []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, ErrCiphertext
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrCiphertext
	}

	return plaintext, nil
}
