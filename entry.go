package offlinecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// codecVersion tags every persisted blob so a future envelope change can
// detect and discard old-format entries instead of misreading them.
const codecVersion = 1

// ErrMalformedEntry marks a persisted blob that failed the codec's
// schema check. The cache converts it into a miss and deletes the blob;
// it never reaches a caller.
var ErrMalformedEntry = errors.New("malformed cache entry")

// CacheEntry carries a cached payload together with the metadata the
// tiered cache needs to expire it.
type CacheEntry[V any] struct {
	Payload   V
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e CacheEntry[V]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type entryEnvelope[V any] struct {
	Version   int       `json:"v"`
	Payload   V         `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func encodeEntry[V any](e CacheEntry[V]) ([]byte, error) {
	return json.Marshal(entryEnvelope[V]{
		Version:   codecVersion,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt.UTC(),
		ExpiresAt: e.ExpiresAt.UTC(),
	})
}

func decodeEntry[V any](blob []byte) (CacheEntry[V], error) {
	var env entryEnvelope[V]
	if err := json.Unmarshal(blob, &env); err != nil {
		return CacheEntry[V]{}, errors.Join(ErrMalformedEntry, err)
	}

	if env.Version != codecVersion {
		return CacheEntry[V]{}, fmt.Errorf("%w: unknown version %d", ErrMalformedEntry, env.Version)
	}
	if env.ExpiresAt.IsZero() {
		return CacheEntry[V]{}, fmt.Errorf("%w: missing expiry", ErrMalformedEntry)
	}

	return CacheEntry[V]{
		Payload:   env.Payload,
		CreatedAt: env.CreatedAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}
