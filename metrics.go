package offlinecache

import (
	"context"
	"strings"
	"time"
)

// Summary is a read-only snapshot of a cache instance for diagnostics.
type Summary struct {
	// MemoryEntries is the current memory-tier entry count.
	MemoryEntries int

	// PersistedEntries is the number of this cache's keys present in
	// the persistent tier, or -1 if the backend listing failed.
	PersistedEntries int

	// EstimatedBytes approximates the serialized size of the memory
	// tier's contents.
	EstimatedBytes int64

	// OldestCreatedAt and NewestCreatedAt bracket the memory tier's
	// entries; both are zero when the tier is empty.
	OldestCreatedAt time.Time
	NewestCreatedAt time.Time

	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// Summary reports entry counts, estimated size, and hit/miss counters.
func (c *Cache[V]) Summary(ctx context.Context) Summary {
	s := Summary{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}

	c.lock.Lock()
	s.MemoryEntries = len(c.entries)
	for _, entry := range c.entries {
		if s.OldestCreatedAt.IsZero() || entry.CreatedAt.Before(s.OldestCreatedAt) {
			s.OldestCreatedAt = entry.CreatedAt
		}
		if entry.CreatedAt.After(s.NewestCreatedAt) {
			s.NewestCreatedAt = entry.CreatedAt
		}
		if blob, err := encodeEntry(entry); err == nil {
			s.EstimatedBytes += int64(len(blob))
		}
	}
	c.lock.Unlock()

	if keys, err := c.store.ListKeys(ctx); err != nil {
		s.PersistedEntries = -1
	} else {
		for _, k := range keys {
			if strings.HasPrefix(k, c.prefix) {
				s.PersistedEntries++
			}
		}
	}

	return s
}
