// Package crypto seals panel passwords before they are written to the record store.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by AesGcmService. Values without it are
// legacy plaintext records and are returned unchanged by Open.
const sealedPrefix = "aesgcm:"

type Service interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// PlaintextService stores passwords as-is.
type PlaintextService struct{}

func (PlaintextService) Seal(plaintext string) (string, error) { return plaintext, nil }
func (PlaintextService) Open(stored string) (string, error)    { return stored, nil }

type AesGcmService struct {
	gcm cipher.AEAD
}

// NewAesGcmService builds an AES-256-GCM sealer from a 64 character hex key.
func NewAesGcmService(hexKey string) (*AesGcmService, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AesGcmService{gcm: gcm}, nil
}

func (s *AesGcmService) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce || ciphertext || tag
	sealed := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (s *AesGcmService) Open(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}

	buf, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed password: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(buf) < nonceSize {
		return "", fmt.Errorf("sealed password too short")
	}

	nonce, cipherBytes := buf[:nonceSize], buf[nonceSize:]
	plain, err := s.gcm.Open(nil, nonce, cipherBytes, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plain), nil
}

// IsSealed reports whether a stored value was produced by AesGcmService.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, sealedPrefix)
}
