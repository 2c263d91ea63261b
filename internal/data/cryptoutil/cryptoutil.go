// Package cryptoutil seals source credentials before they are persisted with a scan job.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CredentialSealer encrypts and decrypts access tokens.
type CredentialSealer interface {
	Seal(token string) (string, error)
	Open(sealed string) (string, error)
}

const (
	sealedPrefixV1 = "v1:"
	plainPrefix    = "plain:"
	keySize        = 32
)

// ErrUnknownSealFormat is returned when a sealed value carries no recognised prefix.
var ErrUnknownSealFormat = errors.New("unknown sealed credential format")

// AESGCMSealer seals credentials with AES-256-GCM.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer constructs a sealer from a 32-byte key.
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes-gcm key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMSealer{aead: aead}, nil
}

// KeyFromString accepts a 64-char hex key, or derives a key from any other non-empty secret.
func KeyFromString(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("credential key is empty")
	}
	if len(secret) == 2*keySize {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw, nil
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// Seal encrypts token with a random nonce and returns a versioned base64 string.
func (s *AESGCMSealer) Seal(token string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(token), nil)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values written by PlainSealer are also accepted so a
// key can be introduced without rewriting existing rows.
func (s *AESGCMSealer) Open(sealed string) (string, error) {
	if strings.HasPrefix(sealed, plainPrefix) {
		return PlainSealer{}.Open(sealed)
	}
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		return "", ErrUnknownSealFormat
	}
	raw, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return "", fmt.Errorf("decode sealed credential: %w", err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", errors.New("sealed credential too short")
	}
	pt, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed credential: %w", err)
	}
	return string(pt), nil
}

// PlainSealer stores credentials base64-encoded without encryption. Used when no key is configured.
type PlainSealer struct{}

func (PlainSealer) Seal(token string) (string, error) {
	return plainPrefix + base64.StdEncoding.EncodeToString([]byte(token)), nil
}

func (PlainSealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, plainPrefix) {
		return "", ErrUnknownSealFormat
	}
	raw, err := base64.StdEncoding.DecodeString(sealed[len(plainPrefix):])
	if err != nil {
		return "", fmt.Errorf("decode plain credential: %w", err)
	}
	return string(raw), nil
}
