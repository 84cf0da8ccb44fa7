// Package secure wraps another kvstore.Store with at-rest sealing so it
// can hold credentials and other sensitive values. General cache entries
// never go through this store.
package secure

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

const envelopeVersion = 0x01

var (
	// ErrSealedEnvelope is returned when a stored blob fails to
	// authenticate or does not carry a known envelope version.
	ErrSealedEnvelope = errors.New("secure: invalid sealed envelope")
)

// Store seals values with AES-GCM before handing them to the inner
// store. Keys are stored as-is; only values are sealed.
type Store struct {
	inner kvstore.Store
	aead  cipher.AEAD
}

// New creates a sealing store over inner. The key must be a valid AES
// key length (16, 24, or 32 bytes).
func New(inner kvstore.Store, key []byte) (*Store, error) {
	if inner == nil {
		return nil, kvstore.ValidationError{Reason: "nil inner store"}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secure: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secure: %w", err)
	}

	return &Store{
		inner: inner,
		aead:  aead,
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < 1+s.aead.NonceSize() || sealed[0] != envelopeVersion {
		return nil, ErrSealedEnvelope
	}

	nonce := sealed[1 : 1+s.aead.NonceSize()]
	plain, err := s.aead.Open(nil, nonce, sealed[1+s.aead.NonceSize():], []byte(key))
	if err != nil {
		return nil, errors.Join(ErrSealedEnvelope, err)
	}

	return plain, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("secure: %w", err)
	}

	sealed := make([]byte, 0, 1+len(nonce)+len(value)+s.aead.Overhead())
	sealed = append(sealed, envelopeVersion)
	sealed = append(sealed, nonce...)
	sealed = s.aead.Seal(sealed, nonce, value, []byte(key))

	return s.inner.Set(ctx, key, sealed)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	return s.inner.ListKeys(ctx)
}
