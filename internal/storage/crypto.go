package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// keyCipher encrypts stored API keys with AES-256-GCM. The AES key is
// derived from the configured master key by SHA-256.
type keyCipher struct {
	aead cipher.AEAD
}

func newKeyCipher(masterKey string) (*keyCipher, error) {
	sum := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &keyCipher{aead: aead}, nil
}

// encrypt returns nonce||ciphertext
func (k *keyCipher) encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (k *keyCipher) decrypt(data []byte) (string, error) {
	if len(data) < k.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:k.aead.NonceSize()], data[k.aead.NonceSize():]
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt key: %w", err)
	}
	return string(plaintext), nil
}
