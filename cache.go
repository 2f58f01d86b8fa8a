package diskcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmgilman/go/fs/billy"

	"github.com/jmgilman/go/diskcache/internal/store"
)

// Cache is a persistent, size-bounded key-value cache bound to one on-disk
// directory. All operations are safe for concurrent use: a single mutex
// serializes every operation (reads refresh recency, so they mutate state
// too), which guarantees readers never observe size accounting that
// disagrees with the entry store.
type Cache struct {
	mu      sync.Mutex
	store   *store.Store
	budget  accountant
	metrics *Metrics
	logger  *Logger
	closed  bool
}

// Open creates or reopens a cache rooted at dir with the given size budget
// in bytes. State left by a previous process is recovered: committed entries
// survive, interrupted writes are discarded, and if the recovered total
// exceeds the budget an eviction pass runs before Open returns.
//
// The budget is a soft cap: a single entry larger than maxSizeBytes is still
// accepted, evicting all other entries (see Put).
func Open(dir string, maxSizeBytes int64, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	if maxSizeBytes <= 0 {
		return nil, fmt.Errorf("max size must be greater than 0")
	}

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.FS == nil {
		options.FS = billy.NewLocal()
	}
	if options.Logger == nil {
		options.Logger = NewNopLogger()
	}

	st, err := store.Open(options.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open entry store: %w", err)
	}

	c := &Cache{
		store:   st,
		budget:  accountant{maxBytes: maxSizeBytes},
		metrics: NewMetrics(),
		logger:  options.Logger,
	}
	c.budget.reserve(st.TotalSize())

	ctx := context.Background()
	c.logger.Info(ctx, "cache opened",
		"directory", dir,
		"max_size_bytes", maxSizeBytes,
		"recovered_entries", st.Len(),
		"recovered_bytes", c.budget.size())

	// Recovered state may exceed the budget, e.g. after reopening with a
	// smaller limit. The most recently used entry plays the role of the
	// just-written key here, so a sole entry larger than the whole budget
	// survives a reopen just as it survived its own Put.
	if c.budget.overBudgetBy() > 0 {
		var keep string
		if order := st.ByLastAccess(); len(order) > 0 {
			keep = order[len(order)-1].Key
		}
		c.mu.Lock()
		c.evictLocked(ctx, keep)
		c.syncLocked(ctx)
		c.mu.Unlock()
	}

	return c, nil
}

// Contains reports whether an entry exists for key. It does not refresh the
// entry's recency.
func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newCacheError("contains", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, newCacheError("contains", key, ErrClosed)
	}

	ok, err := c.store.Exists(key)
	if err != nil {
		c.metrics.RecordError()
		return false, newCacheError("contains", key, err)
	}
	return ok, nil
}

// Get returns the payload stored for key and refreshes its recency.
// It fails with ErrNotFound if the key is absent and ErrCorrupted if the
// stored artifact fails verification.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, newCacheError("get", key, err)
	}

	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, newCacheError("get", key, ErrClosed)
	}

	prevSize, _ := c.store.SizeOf(key)

	payload, err := c.store.Read(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.metrics.RecordMiss()
		} else {
			c.metrics.RecordError()
		}
		logOperation(ctx, c.logger, "get", key, time.Since(start), 0, err)
		return nil, newCacheError("get", key, err)
	}

	// Read corrects a stale recorded size against the payload it actually
	// returned; the accounting must follow, or Size diverges from the store.
	if delta := int64(len(payload)) - prevSize; delta != 0 {
		c.budget.reserve(delta)
	}

	c.metrics.RecordHit(int64(len(payload)))
	logOperation(ctx, c.logger, "get", key, time.Since(start), int64(len(payload)), nil)
	return payload, nil
}

// Put durably stores payload for key, replacing any prior value. The write
// is flushed to stable storage before Put returns. If the write leaves the
// cache over budget, least recently used entries are evicted synchronously
// until the total is back under the budget; a payload that alone exceeds
// the budget is still accepted and everything else is evicted.
//
// A failed Put leaves the previously stored value for key intact and the
// size accounting unchanged.
func (c *Cache) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return newCacheError("put", key, err)
	}
	if key == "" {
		return newCacheError("put", key, fmt.Errorf("key cannot be empty"))
	}

	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newCacheError("put", key, ErrClosed)
	}

	prevSize, replaced := c.store.SizeOf(key)

	if err := c.store.Write(key, payload); err != nil {
		c.metrics.RecordError()
		logOperation(ctx, c.logger, "put", key, time.Since(start), int64(len(payload)), err)
		return newCacheError("put", key, err)
	}

	c.budget.reserve(int64(len(payload)) - prevSize)
	c.metrics.RecordPut(int64(len(payload)), prevSize, replaced)

	if c.budget.overBudgetBy() > 0 {
		c.evictLocked(ctx, key)
	}
	c.syncLocked(ctx)

	logOperation(ctx, c.logger, "put", key, time.Since(start), int64(len(payload)), nil)
	return nil
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return newCacheError("delete", key, err)
	}

	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newCacheError("delete", key, ErrClosed)
	}

	size, existed := c.store.SizeOf(key)

	if err := c.store.Remove(key); err != nil {
		c.metrics.RecordError()
		logOperation(ctx, c.logger, "delete", key, time.Since(start), 0, err)
		return newCacheError("delete", key, err)
	}

	if existed {
		c.budget.reserve(-size)
		c.metrics.RecordDelete(size)
	}
	c.syncLocked(ctx)

	logOperation(ctx, c.logger, "delete", key, time.Since(start), size, nil)
	return nil
}

// Size returns the total bytes occupied by live entries.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.budget.size()
}

// MaxSize returns the configured size budget in bytes.
func (c *Cache) MaxSize() int64 {
	return c.budget.maxBytes
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Metrics returns a snapshot of the cache's operational statistics.
func (c *Cache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Close persists the entry index and marks the cache closed. Subsequent
// operations fail with ErrClosed. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.store.Close(); err != nil {
		return newCacheError("close", "", err)
	}
	return nil
}

// syncLocked persists the entry index, downgrading failures to a warning:
// payloads are already durable when this runs, and recovery rebuilds the
// index from the artifacts on the next open. Callers must hold c.mu.
func (c *Cache) syncLocked(ctx context.Context) {
	if err := c.store.Sync(); err != nil {
		c.metrics.RecordError()
		c.logger.Warn(ctx, "failed to persist entry index", "error", err)
	}
}
