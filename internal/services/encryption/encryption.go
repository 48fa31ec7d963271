// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package encryption seals TOTP secrets at rest with AES-256-GCM.
//
// The encoded form is base64(nonce ‖ tag ‖ ciphertext) with a 12-byte nonce
// and a 16-byte tag.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the required key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrInvalidKey is returned when the configured key is missing or not 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (hex or base64)")
	// ErrDecryption is returned when a ciphertext is malformed or fails authentication.
	ErrDecryption = errors.New("failed to decrypt: ciphertext corrupted or tampered")
)

// Encryptor performs authenticated encryption with a fixed key.
type Encryptor struct {
	aead cipher.AEAD
}

// New creates an Encryptor from a raw 32-byte key.
func New(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// NewFromString creates an Encryptor from a hex (64 chars) or base64 encoded key.
func NewFromString(encoded string) (*Encryptor, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// ParseKey decodes a configured key. Anything that does not decode to exactly
// 32 bytes yields ErrInvalidKey.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	if len(encoded) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(encoded); err == nil {
			return key, nil
		}
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err := enc.DecodeString(encoded)
		if err == nil && len(key) == KeySize {
			return key, nil
		}
	}

	return nil, ErrInvalidKey
}

// GenerateKey returns a fresh random key, hex encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal returns ciphertext ‖ tag.
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	out := make([]byte, 0, NonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt. Any decoding or authentication
// failure returns ErrDecryption and no plaintext.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	if len(raw) < NonceSize+TagSize {
		return "", ErrDecryption
	}

	nonce := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ct := raw[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
