// Package kvstore defines the key-value backend contract the cache and
// queue persist through. Implementations store opaque blobs and carry no
// expiry or size-limit semantics of their own.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when no value exists for the key.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("kvstore: store closed")
)

type ValidationError struct {
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation failed for reason : %s", ve.Reason)
}

// Store is a persistent key-value backend. Remove of an absent key is not
// an error. ListKeys returns every key the store holds; callers filter by
// their own namespace prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}
