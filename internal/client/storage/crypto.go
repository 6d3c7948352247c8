package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// Sealer encrypts values with AES-GCM under a key derived from a secret.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES-256 key as SHA-256 of secret.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plain string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. Every failure wraps ErrCorrupt.
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrCorrupt, err)
	}
	if len(data) < s.aead.NonceSize() {
		return "", fmt.Errorf("%w: sealed value too short", ErrCorrupt)
	}
	nonce, ct := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decrypt: %w", ErrCorrupt, err)
	}
	return string(plain), nil
}

type sealedStore struct {
	Store
	sealer *Sealer
}

// Sealed wraps s so that values are encrypted at rest. Keys stay in clear.
func Sealed(s Store, sealer *Sealer) Store {
	return &sealedStore{Store: s, sealer: sealer}
}

func (s *sealedStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.Store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.sealer.Open(v)
}

func (s *sealedStore) Set(ctx context.Context, key, value string) error {
	v, err := s.sealer.Seal(value)
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, key, v)
}
