package offlinecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hemakotibonthada/CancerDetector-sub005/kvstore"
)

const queuePrefix = "offqueue:"

// Priority orders queued requests; higher drains first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Operation is the deferred request's shape. The queue treats it as
// opaque; the deliver callback interprets it.
type Operation struct {
	Method  string            `json:"method"`
	Target  string            `json:"target"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// QueueItem is one pending operation with its delivery bookkeeping.
type QueueItem struct {
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	CreatedAt  time.Time `json:"created_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	Priority   Priority  `json:"priority"`
}

// DrainReport summarizes one drain pass. Failed lists the IDs of items
// dropped for exceeding their retry ceiling; the caller must surface
// those to the user, since a mutation that will never be delivered has
// user-visible consequences.
type DrainReport struct {
	Delivered []string
	Failed    []string
	Remaining int
}

// Queue is a bounded, priority-ordered list of pending mutating
// operations, persisted item-per-key so it survives process restarts and
// so a crash mid-drain loses nothing already settled.
type Queue struct {
	store    kvstore.Store
	prefix   string
	capacity int
	retries  int
	logger   *slog.Logger
	now      func() time.Time

	lock  sync.Mutex
	items []*QueueItem // kept in drain order
}

// NewQueue creates (or reloads) the named queue over store. Persisted
// items are loaded and re-sorted, so ordering is stable across process
// runs. Corrupt persisted items are dropped and logged.
func NewQueue(store kvstore.Store, name string, cfg *Config, now func() time.Time, logger *slog.Logger) (*Queue, error) {
	if store == nil {
		return nil, kvstore.ValidationError{Reason: "nil backing store"}
	}
	if name == "" || strings.Contains(name, ":") {
		return nil, kvstore.ValidationError{Reason: "queue name must be non-empty and colon-free"}
	}

	c := Config{}
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
	}
	c = c.withDefaults()

	q := &Queue{
		store:    store,
		prefix:   queuePrefix + name + ":",
		capacity: c.QueueCapacity,
		retries:  c.QueueMaxRetries,
		logger:   ensureLogger(logger),
		now:      ensureNow(now),
	}

	if err := q.load(context.Background()); err != nil {
		return nil, err
	}

	return q, nil
}

func (q *Queue) load(ctx context.Context) error {
	keys, err := q.store.ListKeys(ctx)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if !strings.HasPrefix(k, q.prefix) {
			continue
		}

		blob, err := q.store.Get(ctx, k)
		if err != nil {
			q.logger.WarnContext(ctx, "queue item read failed", "key", k, "error", err)
			continue
		}

		var item QueueItem
		if err := json.Unmarshal(blob, &item); err != nil || item.ID == "" {
			q.logger.WarnContext(ctx, "discarding malformed queue item", "key", k, "error", err)
			if err := q.store.Remove(ctx, k); err != nil {
				q.logger.WarnContext(ctx, "queue item remove failed", "key", k, "error", err)
			}
			continue
		}

		q.items = append(q.items, &item)
	}

	q.sortLocked()
	return nil
}

func (q *Queue) itemKey(id string) string {
	return q.prefix + id
}

// sortLocked restores drain order: priority descending, then enqueue
// time ascending, then ID (UUIDv7, itself time-ordered) as tie-break.
func (q *Queue) sortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool {
		a, b := q.items[i], q.items[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Enqueue adds op with the given priority and returns its ID. A negative
// maxRetries uses the configured default. At capacity, the least
// important existing item (lowest priority, then oldest) is evicted
// first; new work is never rejected outright. Persistence is
// best-effort: a backend failure is logged and the item still lives in
// memory for this process's lifetime.
func (q *Queue) Enqueue(ctx context.Context, op Operation, priority Priority, maxRetries int) string {
	if maxRetries < 0 {
		maxRetries = q.retries
	}

	item := &QueueItem{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Operation:  op,
		CreatedAt:  q.now(),
		MaxRetries: maxRetries,
		Priority:   priority,
	}

	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.items) >= q.capacity {
		q.evictWorstLocked(ctx)
	}

	q.items = append(q.items, item)
	q.sortLocked()

	q.persistLocked(ctx, item)

	return item.ID
}

// evictWorstLocked drops the existing item with the lowest priority,
// oldest first within a priority. Caller holds q.lock.
func (q *Queue) evictWorstLocked(ctx context.Context) {
	if len(q.items) == 0 {
		return
	}

	worst := 0
	for i, item := range q.items {
		w := q.items[worst]
		if item.Priority < w.Priority ||
			(item.Priority == w.Priority && item.CreatedAt.Before(w.CreatedAt)) {
			worst = i
		}
	}

	evicted := q.items[worst]
	q.items = append(q.items[:worst], q.items[worst+1:]...)
	q.removeStoredLocked(ctx, evicted.ID)

	q.logger.WarnContext(ctx, "offline queue at capacity, evicted item",
		"id", evicted.ID, "priority", evicted.Priority.String())
}

func (q *Queue) persistLocked(ctx context.Context, item *QueueItem) {
	blob, err := json.Marshal(item)
	if err == nil {
		err = q.store.Set(ctx, q.itemKey(item.ID), blob)
	}
	if err != nil {
		q.logger.WarnContext(ctx, "queue item persist failed", "id", item.ID, "error", err)
	}
}

func (q *Queue) removeStoredLocked(ctx context.Context, id string) {
	if err := q.store.Remove(ctx, q.itemKey(id)); err != nil {
		q.logger.WarnContext(ctx, "queue item remove failed", "id", id, "error", err)
	}
}

// Drain attempts delivery of every pending item, in (priority desc,
// enqueue time asc) order, each at most once per call. Delivered items
// are removed; failed items get their retry count bumped and are dropped
// once it exceeds their ceiling. The store is updated after every item,
// not in one batch, so a crash mid-drain leaves delivered items gone and
// unattempted items queued.
func (q *Queue) Drain(ctx context.Context, deliver func(context.Context, QueueItem) error) DrainReport {
	q.lock.Lock()
	snapshot := make([]*QueueItem, len(q.items))
	copy(snapshot, q.items)
	q.lock.Unlock()

	var report DrainReport

	for _, item := range snapshot {
		if ctx.Err() != nil {
			break
		}

		err := deliver(ctx, *item)

		q.lock.Lock()
		idx := q.indexLocked(item.ID)
		if idx < 0 {
			// removed while we were delivering
			q.lock.Unlock()
			continue
		}

		if err == nil {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
			q.removeStoredLocked(ctx, item.ID)
			report.Delivered = append(report.Delivered, item.ID)
			q.lock.Unlock()
			continue
		}

		live := q.items[idx]
		live.RetryCount++
		if live.RetryCount > live.MaxRetries {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
			q.removeStoredLocked(ctx, live.ID)
			report.Failed = append(report.Failed, live.ID)
			q.logger.WarnContext(ctx, "queue item exceeded retry ceiling",
				"id", live.ID, "attempts", live.RetryCount, "error", err)
		} else {
			q.persistLocked(ctx, live)
			q.logger.DebugContext(ctx, "queue item delivery failed, will retry",
				"id", live.ID, "attempts", live.RetryCount, "error", err)
		}
		q.lock.Unlock()
	}

	q.lock.Lock()
	report.Remaining = len(q.items)
	q.lock.Unlock()

	return report
}

func (q *Queue) indexLocked(id string) int {
	for i, item := range q.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Remove cancels the item with the given ID. Removing an unknown ID is a
// no-op.
func (q *Queue) Remove(ctx context.Context, id string) {
	q.lock.Lock()
	defer q.lock.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return
	}

	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.removeStoredLocked(ctx, id)
}

// Clear drops every pending item from both memory and the store.
func (q *Queue) Clear(ctx context.Context) {
	q.lock.Lock()
	defer q.lock.Unlock()

	for _, item := range q.items {
		q.removeStoredLocked(ctx, item.ID)
	}
	q.items = nil
}

// Size reports the number of pending items.
func (q *Queue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.items)
}
