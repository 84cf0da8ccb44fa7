package offlinecache

import (
	"errors"
	"testing"
	"time"
)

func TestEntryCodecRoundTrip(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry CacheEntry[map[string]int]
	}{
		{
			name: "populated payload",
			entry: CacheEntry[map[string]int]{
				Payload:   map[string]int{"lesions": 2, "scans": 7},
				CreatedAt: created,
				ExpiresAt: created.Add(time.Hour),
			},
		},
		{
			name: "nil payload",
			entry: CacheEntry[map[string]int]{
				CreatedAt: created,
				ExpiresAt: created.Add(time.Minute),
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			blob, err := encodeEntry(tt.entry)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}

			got, err := decodeEntry[map[string]int](blob)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}

			if !got.CreatedAt.Equal(tt.entry.CreatedAt) || !got.ExpiresAt.Equal(tt.entry.ExpiresAt) {
				t.Errorf("timestamps changed: got %v/%v, want %v/%v",
					got.CreatedAt, got.ExpiresAt, tt.entry.CreatedAt, tt.entry.ExpiresAt)
			}
			if len(got.Payload) != len(tt.entry.Payload) {
				t.Errorf("payload changed: got %v, want %v", got.Payload, tt.entry.Payload)
			}
			for k, v := range tt.entry.Payload {
				if got.Payload[k] != v {
					t.Errorf("payload[%q] = %d, want %d", k, got.Payload[k], v)
				}
			}
		})
	}
}

func TestEntryCodecRejectsBadBlobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "garbage", blob: []byte("not json at all")},
		{name: "empty", blob: nil},
		{name: "unknown version", blob: []byte(`{"v":99,"payload":"x","created_at":"2024-06-01T12:00:00Z","expires_at":"2024-06-01T13:00:00Z"}`)},
		{name: "missing expiry", blob: []byte(`{"v":1,"payload":"x","created_at":"2024-06-01T12:00:00Z"}`)},
		{name: "wrong payload shape", blob: []byte(`{"v":1,"payload":{"a":1},"created_at":"2024-06-01T12:00:00Z","expires_at":"2024-06-01T13:00:00Z"}`)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeEntry[string](tt.blob)
			if !errors.Is(err, ErrMalformedEntry) {
				t.Fatalf("got err=%v, want ErrMalformedEntry", err)
			}
		})
	}
}
