package phi

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	kdfSaltSize   = 16
	kdfKeySize    = 32
)

// DeriveKey stretches a secret into a 32-byte AES key with
// PBKDF2-HMAC-SHA256 over a fresh random salt. The salt is not retained:
// derivation is a per-process bootstrap for when no key is supplied
// externally, not a reproducible password scheme.
func DeriveKey(secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("phi kdf: generate secret: %w", err)
		}
	}

	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("phi kdf: generate salt: %w", err)
	}

	return pbkdf2.Key(secret, salt, kdfIterations, kdfKeySize, sha256.New), nil
}

// GenerateKey returns a fresh random 32-byte key, for the keygen command and
// for rotation.
func GenerateKey() ([]byte, error) {
	key := make([]byte, kdfKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("phi keygen: %w", err)
	}
	return key, nil
}
