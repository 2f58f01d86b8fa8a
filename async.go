package diskcache

import (
	"context"
	"fmt"
	"sync"
)

// DefaultWorkers is the worker pool size used when NewAsync is given a
// non-positive worker count.
const DefaultWorkers = 4

// Callback types for asynchronous operations. Each callback fires exactly
// once, on a worker goroutine, with either the operation's result or its
// error exactly as the synchronous operation would have returned it
// (ErrNotFound included).
type (
	// GetCallback receives the payload from an asynchronous Get.
	GetCallback func(payload []byte, err error)

	// PutCallback receives the outcome of an asynchronous Put.
	PutCallback func(err error)

	// DeleteCallback receives the outcome of an asynchronous Delete.
	DeleteCallback func(err error)

	// ContainsCallback receives the result of an asynchronous Contains.
	ContainsCallback func(ok bool, err error)
)

// AsyncCache runs cache operations on a bounded pool of background
// goroutines and reports completion through callbacks, so callers never
// block on cache I/O.
//
// Cancellation is checked only before an operation starts: a context
// cancelled while a task is queued short-circuits to the callback, but once
// the underlying cache call has begun it always runs to completion so the
// store is never left inconsistent.
type AsyncCache struct {
	cache *Cache
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewAsync creates an asynchronous adapter over cache with the given number
// of worker goroutines. A non-positive count uses DefaultWorkers.
func NewAsync(cache *Cache, workers int) *AsyncCache {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	a := &AsyncCache{
		cache: cache,
		tasks: make(chan func(), workers*8),
	}

	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}

	return a
}

func (a *AsyncCache) worker() {
	defer a.wg.Done()
	for task := range a.tasks {
		task()
	}
}

// enqueue schedules fn on the pool. If the adapter is closed, fn runs on a
// fresh goroutine with ErrClosed so its callback still fires exactly once.
func (a *AsyncCache) enqueue(fn func(beginErr error)) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		go fn(ErrClosed)
		return
	}
	// Sending under the lock keeps Close from closing the channel while a
	// submission is in flight. Workers keep draining, so a full queue only
	// blocks briefly.
	a.tasks <- func() { fn(nil) }
	a.mu.Unlock()
}

// begin decides whether a dequeued task may start: adapter closed or context
// already cancelled means the underlying call never begins.
func begin(ctx context.Context, beginErr error) error {
	if beginErr != nil {
		return beginErr
	}
	return ctx.Err()
}

// recovered converts a panic from the underlying call into an error so
// faults are routed through the callback rather than crashing a worker.
func recovered(r any) error {
	return fmt.Errorf("internal fault: %v", r)
}

// GetAsync retrieves the payload for key on a background goroutine and
// passes the result to cb.
func (a *AsyncCache) GetAsync(ctx context.Context, key string, cb GetCallback) {
	a.enqueue(func(beginErr error) {
		var payload []byte
		err := begin(ctx, beginErr)
		if err == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = recovered(r)
					}
				}()
				payload, err = a.cache.Get(ctx, key)
			}()
		}
		if cb != nil {
			cb(payload, err)
		}
	})
}

// PutAsync stores payload for key on a background goroutine and passes the
// outcome to cb.
func (a *AsyncCache) PutAsync(ctx context.Context, key string, payload []byte, cb PutCallback) {
	a.enqueue(func(beginErr error) {
		err := begin(ctx, beginErr)
		if err == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = recovered(r)
					}
				}()
				err = a.cache.Put(ctx, key, payload)
			}()
		}
		if cb != nil {
			cb(err)
		}
	})
}

// DeleteAsync removes the entry for key on a background goroutine and passes
// the outcome to cb.
func (a *AsyncCache) DeleteAsync(ctx context.Context, key string, cb DeleteCallback) {
	a.enqueue(func(beginErr error) {
		err := begin(ctx, beginErr)
		if err == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = recovered(r)
					}
				}()
				err = a.cache.Delete(ctx, key)
			}()
		}
		if cb != nil {
			cb(err)
		}
	})
}

// ContainsAsync checks for key on a background goroutine and passes the
// result to cb.
func (a *AsyncCache) ContainsAsync(ctx context.Context, key string, cb ContainsCallback) {
	a.enqueue(func(beginErr error) {
		var ok bool
		err := begin(ctx, beginErr)
		if err == nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = recovered(r)
					}
				}()
				ok, err = a.cache.Contains(ctx, key)
			}()
		}
		if cb != nil {
			cb(ok, err)
		}
	})
}

// Close stops accepting new work and waits for all queued operations to
// complete. It does not close the underlying cache. Close is idempotent.
func (a *AsyncCache) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.tasks)
	a.mu.Unlock()

	a.wg.Wait()
}
