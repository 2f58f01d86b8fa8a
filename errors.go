// Package diskcache provides a persistent, size-bounded key-value cache.
// This file contains the error surface for cache operations.
package diskcache

import (
	"errors"
	"fmt"

	"github.com/jmgilman/go/diskcache/internal/store"
)

// Sentinel errors for the different failure modes of cache operations.
// They can be checked with errors.Is() for error handling and testing.
var (
	// ErrNotFound indicates a read of a key that has no entry.
	ErrNotFound = store.ErrNotFound

	// ErrStorage indicates an underlying I/O fault: disk errors, permission
	// failures, disk full, or a corrupted artifact.
	ErrStorage = store.ErrStorage

	// ErrCorrupted indicates a stored artifact failed checksum verification.
	// It wraps ErrStorage, so errors.Is(err, ErrStorage) also matches.
	ErrCorrupted = store.ErrCorrupted

	// ErrNotInitialized indicates a package-level operation was attempted
	// before Init.
	ErrNotInitialized = errors.New("cache not initialized")

	// ErrAlreadyInitialized indicates Init was called twice without an
	// intervening Reset.
	ErrAlreadyInitialized = errors.New("cache already initialized")

	// ErrClosed indicates an operation on a cache that has been closed.
	ErrClosed = errors.New("cache is closed")

	// ErrNilValue indicates a stored payload decoded successfully but
	// yielded a nil value. It is deliberately distinct from ErrNotFound:
	// the key exists, its decoded value is just empty.
	ErrNilValue = errors.New("value decodes to nil")
)

// CacheError provides context about a failed cache operation. It wraps the
// underlying error with the operation name and the key being processed.
//
// CacheError implements the error interface and supports error wrapping,
// allowing it to be used with errors.Is() and errors.As().
type CacheError struct {
	// Op describes the operation that failed (e.g., "get", "put", "delete").
	Op string

	// Key is the cache key being processed when the error occurred.
	Key string

	// Err is the underlying error. This preserves the original error
	// context and allows for proper error wrapping.
	Err error
}

// Error implements the error interface. It returns the underlying error
// message to stay compatible with error handling that matches on it.
func (e *CacheError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error to support errors.Is() and errors.As().
func (e *CacheError) Unwrap() error {
	return e.Err
}

// FormatError returns a message with the full operation context, e.g.
// "get \"user:42\": entry not found".
func (e *CacheError) FormatError() string {
	return fmt.Sprintf("%s %q: %s", e.Op, e.Key, e.Err.Error())
}

// IsNotFound reports whether the underlying error is ErrNotFound.
func (e *CacheError) IsNotFound() bool {
	return errors.Is(e.Err, ErrNotFound)
}

// IsStorageFault reports whether the underlying error is a storage fault.
func (e *CacheError) IsStorageFault() bool {
	return errors.Is(e.Err, ErrStorage)
}

// newCacheError creates a CacheError with the given context.
func newCacheError(op, key string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Err: err}
}
