package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	encPrefix = "enc:"
	saltSize  = 16
)

// TokenCipher protects OAuth tokens at rest.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// NopCipher stores values unchanged. Used when no passphrase is configured.
type NopCipher struct{}

func (NopCipher) Encrypt(s string) (string, error) { return s, nil }
func (NopCipher) Decrypt(s string) (string, error) { return s, nil }

// AESTokenCipher implements TokenCipher using AES-256-GCM with an Argon2id
// key derived per value. The random salt travels inside the stored blob, so
// values survive process restarts and passphrase-keyed redeployments.
type AESTokenCipher struct {
	passphrase string
}

// NewAESTokenCipher creates a cipher from a passphrase.
// Returns error if passphrase is empty.
func NewAESTokenCipher(passphrase string) (*AESTokenCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return &AESTokenCipher{passphrase: passphrase}, nil
}

// Encrypt encrypts plaintext and returns "enc:" + base64(salt + nonce + ciphertext).
func (e *AESTokenCipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(e.passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	blob := append(append(salt, nonce...), sealed...)
	return encPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt decrypts ciphertext. If it doesn't have the "enc:" prefix,
// the input is returned as-is (backward compat with plaintext rows).
func (e *AESTokenCipher) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, encPrefix) {
		return ciphertext, nil // plaintext passthrough
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, encPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < saltSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	salt, rest := data[:saltSize], data[saltSize:]

	gcm, err := newGCM(e.passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := rest[:nonceSize], rest[nonceSize:]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
