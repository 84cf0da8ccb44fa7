package offlinecache_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	offlinecache "github.com/Hemakotibonthada/CancerDetector-sub005"
	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore/memory"
)

func testTime() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

// brokenStore fails every operation, standing in for an unreachable
// persistent backend.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("backend unreachable")
}

func (brokenStore) Set(context.Context, string, []byte) error {
	return errors.New("backend unreachable")
}

func (brokenStore) Remove(context.Context, string) error {
	return errors.New("backend unreachable")
}

func (brokenStore) ListKeys(context.Context) ([]string, error) {
	return nil, errors.New("backend unreachable")
}

func newTestCache(t *testing.T, store kvstore.Store, cfg *offlinecache.Config, now func() time.Time) *offlinecache.Cache[string] {
	t.Helper()

	c, err := offlinecache.NewCache[string](store, "test", cfg, now, nil)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
		ttl   time.Duration
	}{
		{name: "short ttl", key: "patients/1", value: "alice", ttl: time.Second},
		{name: "long ttl", key: "patients/2", value: "bob", ttl: 24 * time.Hour},
		{name: "default ttl", key: "patients/3", value: "carol", ttl: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			c := newTestCache(t, memory.New(), nil, testTime)

			c.Set(ctx, tt.key, tt.value, tt.ttl)

			got, ok := c.Get(ctx, tt.key)
			if !ok {
				t.Fatal("expected cache hit")
			}
			if got != tt.value {
				t.Errorf("got %q, want %q", got, tt.value)
			}
		})
	}
}

func TestExpiredEntryNeverReturned(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()

	current := testTime()
	c := newTestCache(t, store, nil, func() time.Time { return current })

	c.Set(ctx, "scan/1", "pending", time.Minute)

	current = current.Add(2 * time.Minute)

	if _, ok := c.Get(ctx, "scan/1"); ok {
		t.Fatal("expected expired entry to be absent")
	}

	// no resurrection: the stale persistent copy must be gone too
	if _, ok := c.Get(ctx, "scan/1"); ok {
		t.Fatal("expected entry to stay absent")
	}

	keys, err := store.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected stale persistent copy removed, found %v", keys)
	}
}

func TestEvictionOldestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := offlinecache.Config{MaxEntries: 5}

	current := testTime()
	c := newTestCache(t, memory.New(), &cfg, func() time.Time { return current })

	for i := 0; i < 6; i++ {
		c.Set(ctx, fmt.Sprintf("key-%d", i), "v", time.Hour)
		current = current.Add(time.Second)
	}

	// watermark defaults to 90% of MaxEntries, so the sixth write
	// shrinks the memory tier to 4, dropping the two oldest entries
	s := c.Summary(ctx)
	if s.MemoryEntries != 4 {
		t.Fatalf("memory entries = %d, want 4", s.MemoryEntries)
	}
	if want := testTime().Add(2 * time.Second); !s.OldestCreatedAt.Equal(want) {
		t.Errorf("oldest createdAt = %v, want %v (oldest entries evicted first)", s.OldestCreatedAt, want)
	}
	if s.Evictions != 2 {
		t.Errorf("evictions = %d, want 2", s.Evictions)
	}
}

func TestPromotionFromPersistentTier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()

	first := newTestCache(t, store, nil, testTime)
	first.Set(ctx, "report/9", "malignant", time.Hour)

	// a fresh instance simulates a process restart with a cold memory tier
	second := newTestCache(t, store, nil, testTime)

	got, ok := second.Get(ctx, "report/9")
	if !ok {
		t.Fatal("expected persistent-tier hit")
	}
	if got != "malignant" {
		t.Errorf("got %q, want %q", got, "malignant")
	}

	if s := second.Summary(ctx); s.MemoryEntries != 1 {
		t.Errorf("memory entries after promotion = %d, want 1", s.MemoryEntries)
	}
}

func TestCorruptPersistedBlobTreatedAsMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()

	if err := store.Set(ctx, "offcache:test:bad", []byte("{not json")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := newTestCache(t, store, nil, testTime)

	if _, ok := c.Get(ctx, "bad"); ok {
		t.Fatal("expected corrupt blob to read as a miss")
	}

	// the bad blob must be deleted so it does not keep recurring
	if _, err := store.Get(ctx, "offcache:test:bad"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Errorf("expected corrupt blob removed, got err=%v", err)
	}
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	c := newTestCache(t, store, nil, testTime)

	c.Set(ctx, "patient/1", "a", time.Hour)
	c.Invalidate(ctx, "patient/1")
	c.Invalidate(ctx, "never-present")

	if _, ok := c.Get(ctx, "patient/1"); ok {
		t.Fatal("expected invalidated key to be absent")
	}
}

func TestInvalidatePattern(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	c := newTestCache(t, store, nil, testTime)

	c.Set(ctx, "patient/1", "a", time.Hour)
	c.Set(ctx, "patient/2", "b", time.Hour)
	c.Set(ctx, "scan/1", "c", time.Hour)

	c.InvalidatePattern(ctx, func(key string) bool {
		return strings.HasPrefix(key, "patient/")
	})

	if _, ok := c.Get(ctx, "patient/1"); ok {
		t.Error("patient/1 should be invalidated")
	}
	if _, ok := c.Get(ctx, "patient/2"); ok {
		t.Error("patient/2 should be invalidated")
	}
	if _, ok := c.Get(ctx, "scan/1"); !ok {
		t.Error("scan/1 should survive")
	}

	if s := c.Summary(ctx); s.PersistedEntries != 1 {
		t.Errorf("persisted entries = %d, want 1", s.PersistedEntries)
	}
}

func TestClearAllLeavesUnrelatedKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()

	// another subsystem's key in the shared backend
	if err := store.Set(ctx, "settings:theme", []byte("dark")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	c := newTestCache(t, store, nil, testTime)
	c.Set(ctx, "a", "1", time.Hour)
	c.Set(ctx, "b", "2", time.Hour)

	c.ClearAll(ctx)
	c.ClearAll(ctx) // second call is a no-op, never errors

	if s := c.Summary(ctx); s.MemoryEntries != 0 || s.PersistedEntries != 0 {
		t.Errorf("summary after clear = %+v, want empty", s)
	}

	if _, err := store.Get(ctx, "settings:theme"); err != nil {
		t.Errorf("unrelated key must survive ClearAll: %v", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	current := testTime()
	c := newTestCache(t, memory.New(), nil, func() time.Time { return current })

	c.Set(ctx, "short", "1", time.Minute)
	c.Set(ctx, "long", "2", time.Hour)

	current = current.Add(10 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("sweep removed %d entries, want 1", removed)
	}

	if s := c.Summary(ctx); s.MemoryEntries != 1 {
		t.Errorf("memory entries after sweep = %d, want 1", s.MemoryEntries)
	}
}

func TestSweeperLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := offlinecache.Config{SweepInterval: time.Hour}
	c := newTestCache(t, memory.New(), &cfg, testTime)

	c.StartSweeper(ctx)
	c.StartSweeper(ctx) // double start is a no-op
	c.StopSweeper()
	c.StopSweeper() // double stop is a no-op
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestCache(t, brokenStore{}, nil, testTime)

	c.Set(ctx, "k", "survives", time.Hour)

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("memory tier must serve the value despite backend failure")
	}
	if got != "survives" {
		t.Errorf("got %q, want %q", got, "survives")
	}
}

func TestFetchCoalescesMisses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestCache(t, memory.New(), nil, testTime)

	var calls atomic.Int32
	loader := func(context.Context) (string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "loaded", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Fetch(ctx, "shared", time.Hour, loader)
			if err != nil {
				t.Errorf("Fetch: %v", err)
			}
			if got != "loaded" {
				t.Errorf("got %q, want %q", got, "loaded")
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader ran %d times, want 1", n)
	}

	// subsequent fetch is a plain hit
	if _, err := c.Fetch(ctx, "shared", time.Hour, loader); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader ran %d times after hit, want 1", n)
	}
}

func TestFetchLoaderError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestCache(t, memory.New(), nil, testTime)

	wantErr := errors.New("network down")
	_, err := c.Fetch(ctx, "k", time.Hour, func(context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got err=%v, want %v", err, wantErr)
	}

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("failed load must not populate the cache")
	}
}
