// Package offlinecache keeps the mobile client's data available when
// connectivity is absent or slow. It layers a volatile memory tier over a
// persistent key-value backend, expires entries by TTL, bounds the memory
// tier by count, and queues mutating requests for deferred delivery.
package offlinecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

const cachePrefix = "offcache:"

// Cache is a two-tier cache for values of type V. Reads hit the memory
// tier first and fall back to the persistent store, promoting on a hit.
// Writes go through to the store best-effort; a persistence failure never
// reaches the caller because the memory tier already holds the entry.
//
// All persisted keys live under the instance's reserved prefix, so
// several caches and unrelated subsystems can share one backend.
type Cache[V any] struct {
	store  kvstore.Store
	cfg    Config
	prefix string
	logger *slog.Logger
	now    func() time.Time

	lock    sync.Mutex
	entries map[string]CacheEntry[V]

	group singleflight.Group

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	sweepLock sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewCache creates a cache over store, namespaced so it only ever touches
// its own keys. If now is nil, time.Now is used. If logger is nil, a
// no-op logger writing to io.Discard is used.
func NewCache[V any](store kvstore.Store, namespace string, cfg *Config, now func() time.Time, logger *slog.Logger) (*Cache[V], error) {
	if store == nil {
		return nil, kvstore.ValidationError{Reason: "nil backing store"}
	}
	if namespace == "" || strings.Contains(namespace, ":") {
		return nil, kvstore.ValidationError{Reason: "namespace must be non-empty and colon-free"}
	}

	c := Config{}
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
	}

	return &Cache[V]{
		store:   store,
		cfg:     c.withDefaults(),
		prefix:  cachePrefix + namespace + ":",
		logger:  ensureLogger(logger),
		now:     ensureNow(now),
		entries: make(map[string]CacheEntry[V]),
	}, nil
}

func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func ensureNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func (c *Cache[V]) storageKey(key string) string {
	return c.prefix + key
}

// Set writes value under key in the memory tier, then writes through to
// the persistent tier. The write-through is best-effort: its error is
// logged and deliberately discarded because the memory write already
// succeeded. A non-positive ttl uses the configured default.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	now := c.now()
	entry := CacheEntry[V]{
		Payload:   value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	c.lock.Lock()
	c.entries[key] = entry
	c.evictLocked()
	c.lock.Unlock()

	if err := c.persist(ctx, key, entry); err != nil {
		c.logger.WarnContext(ctx, "cache write-through failed", "key", key, "error", err)
	}
}

func (c *Cache[V]) persist(ctx context.Context, key string, entry CacheEntry[V]) error {
	blob, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.storageKey(key), blob)
}

// Get returns the value under key, or absent. Expired entries are removed
// from whichever tier they are found in and never returned. A persistent
// hit is promoted into the memory tier.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	now := c.now()

	c.lock.Lock()
	if entry, found := c.entries[key]; found {
		if !entry.expired(now) {
			c.lock.Unlock()
			c.hits.Add(1)
			return entry.Payload, true
		}
		delete(c.entries, key)
		c.expirations.Add(1)
	}
	c.lock.Unlock()

	blob, err := c.store.Get(ctx, c.storageKey(key))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			c.logger.WarnContext(ctx, "cache persistent read failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return zero, false
	}

	entry, err := decodeEntry[V](blob)
	if err != nil {
		// corrupt blob: drop it so it does not keep recurring
		c.logger.WarnContext(ctx, "discarding malformed cache entry", "key", key, "error", err)
		c.removeStored(ctx, key)
		c.misses.Add(1)
		return zero, false
	}

	if entry.expired(now) {
		c.removeStored(ctx, key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	c.lock.Lock()
	c.entries[key] = entry
	c.evictLocked()
	c.lock.Unlock()

	c.hits.Add(1)
	return entry.Payload, true
}

// Fetch returns the cached value under key, or runs loader to produce it
// and caches the result with ttl. Concurrent misses for the same key are
// coalesced into a single loader call.
func (c *Cache[V]) Fetch(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return v.(V), nil
}

// Invalidate removes key from both tiers. It never fails, even if the key
// was never present.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) {
	c.lock.Lock()
	delete(c.entries, key)
	c.lock.Unlock()

	c.removeStored(ctx, key)
}

// InvalidatePattern removes every cached key, across both tiers, whose
// key satisfies pred. Only this cache's own namespace is touched.
func (c *Cache[V]) InvalidatePattern(ctx context.Context, pred func(key string) bool) {
	c.lock.Lock()
	for key := range c.entries {
		if pred(key) {
			delete(c.entries, key)
		}
	}
	c.lock.Unlock()

	for _, key := range c.storedKeys(ctx) {
		if pred(key) {
			c.removeStored(ctx, key)
		}
	}
}

// ClearAll removes every entry this cache owns from both tiers without
// touching unrelated persisted data. Calling it on an empty cache is a
// no-op.
func (c *Cache[V]) ClearAll(ctx context.Context) {
	c.lock.Lock()
	c.entries = make(map[string]CacheEntry[V])
	c.lock.Unlock()

	for _, key := range c.storedKeys(ctx) {
		c.removeStored(ctx, key)
	}
}

// storedKeys lists this cache's logical keys present in the persistent
// tier. Backend failures are logged and yield an empty list.
func (c *Cache[V]) storedKeys(ctx context.Context) []string {
	all, err := c.store.ListKeys(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "cache key listing failed", "error", err)
		return nil
	}

	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, c.prefix) {
			keys = append(keys, strings.TrimPrefix(k, c.prefix))
		}
	}
	return keys
}

func (c *Cache[V]) removeStored(ctx context.Context, key string) {
	if err := c.store.Remove(ctx, c.storageKey(key)); err != nil {
		c.logger.WarnContext(ctx, "cache persistent remove failed", "key", key, "error", err)
	}
}

// evictLocked removes the oldest entries until the memory tier is back at
// the watermark. Caller holds c.lock. Eviction never touches the
// persistent copies; those age out by TTL.
func (c *Cache[V]) evictLocked() {
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	byAge := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		byAge = append(byAge, aged{key: key, createdAt: entry.CreatedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].createdAt.Before(byAge[j].createdAt)
	})

	for _, candidate := range byAge {
		if len(c.entries) <= c.cfg.EvictionWatermark {
			break
		}
		delete(c.entries, candidate.key)
		c.evictions.Add(1)
	}
}
