package diskcache

import (
	"context"
	"sync"
)

// The package-level API mirrors Cache on a single process-wide default
// instance for applications that want one shared cache without threading a
// handle through their code. Library code should prefer an explicit Cache.
var (
	defaultMu    sync.Mutex
	defaultCache *Cache
)

// Init opens the process-wide default cache. It fails with
// ErrAlreadyInitialized if called again without an intervening Reset.
func Init(dir string, maxSizeBytes int64, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCache != nil {
		return ErrAlreadyInitialized
	}

	cache, err := Open(dir, maxSizeBytes, opts...)
	if err != nil {
		return err
	}
	defaultCache = cache
	return nil
}

// Reset closes the default cache and clears it so Init can be called again.
// Resetting an uninitialized default is not an error.
func Reset() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCache == nil {
		return nil
	}
	err := defaultCache.Close()
	defaultCache = nil
	return err
}

// Default returns the process-wide default cache, or ErrNotInitialized if
// Init has not been called.
func Default() (*Cache, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCache == nil {
		return nil, ErrNotInitialized
	}
	return defaultCache, nil
}

// Contains reports whether the default cache holds an entry for key.
func Contains(ctx context.Context, key string) (bool, error) {
	cache, err := Default()
	if err != nil {
		return false, err
	}
	return cache.Contains(ctx, key)
}

// Get returns the payload stored for key in the default cache.
func Get(ctx context.Context, key string) ([]byte, error) {
	cache, err := Default()
	if err != nil {
		return nil, err
	}
	return cache.Get(ctx, key)
}

// Put stores payload for key in the default cache.
func Put(ctx context.Context, key string, payload []byte) error {
	cache, err := Default()
	if err != nil {
		return err
	}
	return cache.Put(ctx, key, payload)
}

// Delete removes the entry for key from the default cache.
func Delete(ctx context.Context, key string) error {
	cache, err := Default()
	if err != nil {
		return err
	}
	return cache.Delete(ctx, key)
}

// Size returns the total bytes occupied by live entries in the default
// cache.
func Size() (int64, error) {
	cache, err := Default()
	if err != nil {
		return 0, err
	}
	return cache.Size(), nil
}
