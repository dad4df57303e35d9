package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// EncryptionError reports a failure to encrypt a sensitive field. The
// plaintext is never included in the message.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string { return fmt.Sprintf("phi encrypt: %v", e.Err) }
func (e *EncryptionError) Unwrap() error { return e.Err }

// DecryptionError reports malformed or foreign-keyed ciphertext. Callers
// listing multiple records skip the failing record rather than failing the
// whole request.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string { return fmt.Sprintf("phi decrypt: %v", e.Err) }
func (e *DecryptionError) Unwrap() error { return e.Err }

// Encryptor is the encryption gate for sensitive PHI fields. It owns the
// active AES-256 key exclusively: the key enters at construction or rotation
// and is never exposed except as the superseded key returned by RotateKey.
//
// Encryption is AES-256-GCM with a random nonce prepended to the ciphertext,
// base64-encoded so the result can be stored verbatim in a text column. It is
// applied per field (diagnosis, treatment, notes, instructions), never to a
// record as a blob, so non-sensitive fields stay queryable.
//
// The RWMutex serializes key rotation against in-flight encrypt/decrypt
// calls so an operation never mixes keys.
type Encryptor struct {
	mu   sync.RWMutex
	key  []byte
	aead cipher.AEAD
}

// NewEncryptor creates an encryption gate with the given 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Encryptor{key: k, aead: aead}, nil
}

// NewDerivedEncryptor creates an encryption gate with a key derived from the
// given secret via PBKDF2 (see DeriveKey). The derivation runs once, here,
// not per operation. Because the salt is random, a derived key does not
// survive a process restart: ciphertext written under it is unreadable by the
// next process unless the operator captures and supplies the key explicitly.
func NewDerivedEncryptor(secret []byte) (*Encryptor, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return NewEncryptor(key)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phi encryptor: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create GCM: %w", err)
	}
	return aead, nil
}

// Encrypt encrypts the plaintext and returns base64(nonce || ciphertext).
// It never silently returns the input: any internal failure surfaces as an
// *EncryptionError.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &EncryptionError{Err: fmt.Errorf("generate nonce: %w", err)}
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Corrupt ciphertext, a flipped byte, or data
// sealed under a different key all fail with *DecryptionError; GCM's
// authentication tag guarantees corrupted plaintext is never returned.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("base64 decode: %w", err)}
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", &DecryptionError{Err: fmt.Errorf("ciphertext too short")}
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	return string(plaintext), nil
}

// RotateKey swaps the active key for the supplied one and returns the
// superseded key so the operator can re-encrypt existing ciphertext
// out-of-band. There is no automatic re-encryption sweep: data written under
// the old key stays readable only through that returned key.
func (e *Encryptor) RotateKey(newKey []byte) ([]byte, error) {
	aead, err := newAEAD(newKey)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.key
	k := make([]byte, len(newKey))
	copy(k, newKey)
	e.key = k
	e.aead = aead
	return previous, nil
}
