// Package crypto is the encryption boundary for identity records. Content
// crosses it exactly twice: sealed before persistence, opened after fetch.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"idwallet/pkg/platform/sentinel"
)

// Sealer encrypts and decrypts record payloads with AES-256-GCM. The key is
// process-wide configuration; callers never supply their own.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("record key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce. The blob layout is
// nonce || ciphertext so a record is self-contained in one column.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Any tampering, truncation, or
// wrong-key blob fails the GCM integrity check and returns ErrDecrypt;
// partial or garbage plaintext is never returned.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < s.aead.NonceSize() {
		return nil, sentinel.ErrDecrypt
	}
	nonce, ciphertext := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, sentinel.ErrDecrypt
	}
	return plaintext, nil
}
