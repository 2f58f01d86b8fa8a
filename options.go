// Package diskcache provides a persistent, size-bounded key-value cache.
// This file contains functional options for configuration.
package diskcache

import (
	"github.com/jmgilman/go/fs/core"
)

// Options contains configuration options for a Cache.
type Options struct {
	// FS provides filesystem operations for all cache storage.
	// If nil, a default OS-backed filesystem is used.
	FS core.FS

	// Logger receives structured logs for cache operations and evictions.
	// If nil, logging is disabled.
	Logger *Logger
}

// Option is a functional option for configuring a Cache.
type Option func(*Options)

// WithFS configures the cache to use a custom filesystem.
// This is primarily used for testing with in-memory filesystems.
func WithFS(fsys core.FS) Option {
	return func(opts *Options) {
		opts.FS = fsys
	}
}

// WithLogger configures the cache to emit structured logs through the given
// logger. The default is a no-op logger.
func WithLogger(logger *Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
