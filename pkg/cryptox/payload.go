package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCiphertext reports a payload that could not be decrypted with the loaded
// key: malformed encoding, truncated data, or a ciphertext produced under a
// different key.
var ErrCiphertext = errors.New("cryptox: payload decryption failed")

// PayloadCipher performs symmetric payload encryption with AES-256-GCM.
// The wire format is base64url([12-byte nonce][ciphertext][16-byte auth tag]).
type PayloadCipher struct {
	aead cipher.AEAD
}

// LoadPayloadCipher loads the payload key from the given file, generating and
// persisting a fresh key on first run.
func LoadPayloadCipher(path string) (*PayloadCipher, error) {
	path = filepath.Clean(path)

	keyMaterial, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		keyMaterial = make([]byte, 32)
		if _, err := rand.Read(keyMaterial); err != nil {
			return nil, fmt.Errorf("failed to generate payload key: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, keyMaterial, 0600); err != nil {
			return nil, fmt.Errorf("failed to persist payload key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read payload key file: %w", err)
	}

	return NewPayloadCipher(keyMaterial)
}

// NewPayloadCipher derives an AES-256 key from the given key material.
func NewPayloadCipher(keyMaterial []byte) (*PayloadCipher, error) {
	// Derive a proper 32-byte key using SHA-256 so the key file may hold
	// arbitrary material.
	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &PayloadCipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns the base64url-encoded ciphertext.
func (c *PayloadCipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and auth tag to the nonce.
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a payload produced by Seal. Any failure, including a
// ciphertext sealed under a different key, yields ErrCiphertext.
func (c *PayloadCipher) Open(encoded string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertext
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCiphertext
	}

	return plaintext, nil
}
