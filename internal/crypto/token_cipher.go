package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "v1:"

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// TokenCipher seals credential secrets at rest with XChaCha20-Poly1305 under
// a key derived from the configured secret.
type TokenCipher struct {
	key []byte
}

func NewTokenCipher(secret string) (*TokenCipher, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("encryption secret must be at least 16 bytes, got %d", len(secret))
	}

	key, err := deriveEncryptionKey([]byte(secret))
	if err != nil {
		return nil, err
	}

	return &TokenCipher{key: key}, nil
}

// Encrypt returns "v1:" followed by base64(nonce || ciphertext). Empty input
// stays empty.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	encoded, ok := strings.CutPrefix(ciphertext, sealedPrefix)
	if !ok {
		return "", ErrMalformedCiphertext
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func deriveEncryptionKey(secret []byte) ([]byte, error) {
	salt := []byte("automations-credentials")
	info := []byte("token-encryption-key")

	reader := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, chacha20poly1305.KeySize)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	return key, nil
}
