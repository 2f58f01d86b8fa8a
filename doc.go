// Package diskcache provides a persistent, size-bounded key-value cache that
// stores opaque payloads on disk with least-recently-used eviction.
//
// The cache maps string keys to byte payloads. Every write is immediately
// durable: payloads are committed with an atomic temp-file-and-rename scheme
// and verified with checksums on read, so a crash can never leave a key
// readable with partial or mixed content. When the total stored bytes exceed
// the configured budget, the least recently used entries are evicted
// synchronously at the end of the put that crossed the budget.
//
// # Architecture Overview
//
// The package consists of a small set of components:
//
//   - Cache: the synchronous facade (Contains, Get, Put, Delete) that
//     serializes all access to the store under a single mutex
//   - internal/store: the durable entry store owning the on-disk layout,
//     the key index, and LRU ordering
//   - AsyncCache: a worker-pool adapter that runs facade operations on
//     background goroutines and reports completion through callbacks
//   - Codec: a pluggable serialization boundary for callers that store
//     typed values rather than raw payloads
//
// # Size Budget
//
// The budget is a soft cap defined as the smallest achievable total: a
// single entry larger than the entire budget is still accepted, evicting
// every other entry. In all other cases the total stored bytes are back
// under the budget before Put returns.
//
// # Filesystems
//
// All storage I/O goes through the core.FS abstraction from
// github.com/jmgilman/go/fs/core. Open defaults to an OS-backed filesystem;
// tests inject an in-memory one via WithFS.
//
// # Errors
//
// Failure modes are exposed as sentinel errors (ErrNotFound, ErrStorage,
// ErrCorrupted, ErrNotInitialized, ErrAlreadyInitialized, ErrClosed) that
// support errors.Is through wrapped CacheError values.
//
// # Thread Safety
//
// A Cache is safe for concurrent use by multiple goroutines. Operations are
// serialized, so readers never observe a store whose size accounting
// disagrees with its contents.
package diskcache
