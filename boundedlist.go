package offlinecache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

const listPrefix = "offlist:"

// BoundedList is a capacity-bounded, most-recent-first list persisted as
// a single blob. Adding an item already present (by key) moves it to the
// front instead of duplicating it; adding beyond capacity silently drops
// the oldest entry. Used for recent-search history and favorites.
type BoundedList[T any] struct {
	store    kvstore.Store
	key      string
	capacity int
	keyOf    func(T) string
	logger   *slog.Logger

	lock  sync.Mutex
	items []T
}

// NewBoundedList creates (or reloads) the named list over store. keyOf
// supplies the identity used for deduplication.
func NewBoundedList[T any](store kvstore.Store, name string, capacity int, keyOf func(T) string, logger *slog.Logger) (*BoundedList[T], error) {
	if store == nil {
		return nil, kvstore.ValidationError{Reason: "nil backing store"}
	}
	if name == "" || strings.Contains(name, ":") {
		return nil, kvstore.ValidationError{Reason: "list name must be non-empty and colon-free"}
	}
	if capacity <= 0 {
		return nil, kvstore.ValidationError{Reason: "capacity must be positive"}
	}
	if keyOf == nil {
		return nil, kvstore.ValidationError{Reason: "nil key function"}
	}

	l := &BoundedList[T]{
		store:    store,
		key:      listPrefix + name,
		capacity: capacity,
		keyOf:    keyOf,
		logger:   ensureLogger(logger),
	}
	l.load(context.Background())

	return l, nil
}

func (l *BoundedList[T]) load(ctx context.Context) {
	blob, err := l.store.Get(ctx, l.key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			l.logger.WarnContext(ctx, "list read failed", "list", l.key, "error", err)
		}
		return
	}

	var items []T
	if err := json.Unmarshal(blob, &items); err != nil {
		l.logger.WarnContext(ctx, "discarding malformed list blob", "list", l.key, "error", err)
		if err := l.store.Remove(ctx, l.key); err != nil {
			l.logger.WarnContext(ctx, "list remove failed", "list", l.key, "error", err)
		}
		return
	}

	if len(items) > l.capacity {
		items = items[:l.capacity]
	}
	l.items = items
}

func (l *BoundedList[T]) persistLocked(ctx context.Context) {
	blob, err := json.Marshal(l.items)
	if err == nil {
		err = l.store.Set(ctx, l.key, blob)
	}
	if err != nil {
		l.logger.WarnContext(ctx, "list persist failed", "list", l.key, "error", err)
	}
}

// Add puts item at the front. An existing entry with the same key moves
// to the front; overflow drops the last (oldest) entry.
func (l *BoundedList[T]) Add(ctx context.Context, item T) {
	k := l.keyOf(item)

	l.lock.Lock()
	defer l.lock.Unlock()

	for i, existing := range l.items {
		if l.keyOf(existing) == k {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}

	l.items = append([]T{item}, l.items...)
	if len(l.items) > l.capacity {
		l.items = l.items[:l.capacity]
	}

	l.persistLocked(ctx)
}

// Remove drops the entry matching item's key, if present.
func (l *BoundedList[T]) Remove(ctx context.Context, item T) {
	k := l.keyOf(item)

	l.lock.Lock()
	defer l.lock.Unlock()

	for i, existing := range l.items {
		if l.keyOf(existing) == k {
			l.items = append(l.items[:i], l.items[i+1:]...)
			l.persistLocked(ctx)
			return
		}
	}
}

// Items returns the list contents, most recent first.
func (l *BoundedList[T]) Items() []T {
	l.lock.Lock()
	defer l.lock.Unlock()

	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Clear empties the list in memory and in the store.
func (l *BoundedList[T]) Clear(ctx context.Context) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.items = nil
	if err := l.store.Remove(ctx, l.key); err != nil {
		l.logger.WarnContext(ctx, "list remove failed", "list", l.key, "error", err)
	}
}
