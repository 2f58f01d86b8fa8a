package diskcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxSize int64) *Cache {
	t.Helper()
	c, err := Open("/cache", maxSize, WithFS(billy.NewMemory()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		maxSize int64
	}{
		{name: "empty directory", dir: "", maxSize: 100},
		{name: "zero max size", dir: "/cache", maxSize: 0},
		{name: "negative max size", dir: "/cache", maxSize: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.dir, tt.maxSize, WithFS(billy.NewMemory()))
			assert.Error(t, err)
		})
	}
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	payload := []byte{0x00, 0x01, 0xff, 0xfe, 'a', 'b'}
	require.NoError(t, c.Put(ctx, "binary", payload))

	got, err := c.Get(ctx, "binary")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCache_GetMissing(t *testing.T) {
	c := newTestCache(t, 1024)

	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var cerr *CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "get", cerr.Op)
	assert.Equal(t, "missing", cerr.Key)
	assert.True(t, cerr.IsNotFound())
}

func TestCache_Contains(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	ok, err := c.Contains(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "key", []byte("value")))

	ok, err = c.Contains(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_DeleteThenGet(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key", []byte("value")))
	require.NoError(t, c.Delete(ctx, "key"))

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, 0, c.Len())
}

func TestCache_DeleteAbsentKey(t *testing.T) {
	c := newTestCache(t, 1024)

	assert.NoError(t, c.Delete(context.Background(), "never-stored"))
}

func TestCache_PutEmptyKey(t *testing.T) {
	c := newTestCache(t, 1024)

	err := c.Put(context.Background(), "", []byte("value"))
	require.Error(t, err)

	var cerr *CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "put", cerr.Op)
}

func TestCache_PutReplacesValue(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key", []byte("original")))
	require.NoError(t, c.Put(ctx, "key", []byte("replacement value")))

	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("replacement value"), got)

	// Accounting tracks the new size, not the sum of both writes.
	assert.Equal(t, int64(len("replacement value")), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", make([]byte, 60)))
	require.NoError(t, c.Put(ctx, "b", make([]byte, 60)))

	// 120 bytes exceeds the 100-byte budget; "a" is oldest and must go.
	ok, err := c.Contains(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "oldest entry should have been evicted")

	ok, err = c.Contains(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok, "newest entry should have survived")

	assert.Equal(t, int64(60), c.Size())
	assert.Equal(t, int64(1), c.Metrics().Evictions)
}

func TestCache_OversizedEntryAccepted(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "small", make([]byte, 40)))
	require.NoError(t, c.Put(ctx, "huge", make([]byte, 150)))

	// The oversized entry is kept even though it alone exceeds the budget;
	// everything else is evicted.
	ok, err := c.Contains(ctx, "huge")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Contains(ctx, "small")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(150), c.Size())

	got, err := c.Get(ctx, "huge")
	require.NoError(t, err)
	assert.Len(t, got, 150)
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", make([]byte, 40)))
	require.NoError(t, c.Put(ctx, "b", make([]byte, 40)))

	// Reading "a" makes "b" the least recently used.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "c", make([]byte, 40)))

	ok, err := c.Contains(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "least recently used entry should have been evicted")

	for _, key := range []string{"a", "c"} {
		ok, err := c.Contains(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "entry %q should have survived", key)
	}
}

func TestCache_SizeTracksOperations(t *testing.T) {
	c := newTestCache(t, 10_000)
	ctx := context.Background()

	assert.Equal(t, int64(0), c.Size())

	require.NoError(t, c.Put(ctx, "a", make([]byte, 100)))
	require.NoError(t, c.Put(ctx, "b", make([]byte, 200)))
	assert.Equal(t, int64(300), c.Size())

	require.NoError(t, c.Put(ctx, "a", make([]byte, 50)))
	assert.Equal(t, int64(250), c.Size())

	require.NoError(t, c.Delete(ctx, "b"))
	assert.Equal(t, int64(50), c.Size())

	require.NoError(t, c.Delete(ctx, "a"))
	assert.Equal(t, int64(0), c.Size())

	assert.Equal(t, int64(10_000), c.MaxSize())
}

func TestCache_ReopenRecoversState(t *testing.T) {
	fsys := billy.NewMemory()
	ctx := context.Background()

	c, err := Open("/cache", 1024, WithFS(fsys))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "persistent", []byte("survives restart")))
	require.NoError(t, c.Close())

	reopened, err := Open("/cache", 1024, WithFS(fsys))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persistent")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives restart"), got)
	assert.Equal(t, int64(len("survives restart")), reopened.Size())
}

func TestCache_ReopenKeepsOversizedEntry(t *testing.T) {
	fsys := billy.NewMemory()
	ctx := context.Background()

	c, err := Open("/cache", 100, WithFS(fsys))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "huge", make([]byte, 150)))
	require.NoError(t, c.Close())

	// The entry was accepted as the sole occupant despite exceeding the
	// budget; a clean reopen with the same budget must not evict it.
	reopened, err := Open("/cache", 100, WithFS(fsys))
	require.NoError(t, err)
	defer reopened.Close()

	ok, err := reopened.Contains(ctx, "huge")
	require.NoError(t, err)
	assert.True(t, ok, "oversized entry should survive a reopen")
	assert.Equal(t, 1, reopened.Len())
	assert.Equal(t, int64(150), reopened.Size())

	got, err := reopened.Get(ctx, "huge")
	require.NoError(t, err)
	assert.Len(t, got, 150)
}

func TestCache_ReopenWithSmallerBudgetEvicts(t *testing.T) {
	fsys := billy.NewMemory()
	ctx := context.Background()

	c, err := Open("/cache", 300, WithFS(fsys))
	require.NoError(t, err)
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(ctx, key, make([]byte, 80)))
	}
	require.NoError(t, c.Close())

	// Reopening with a 100-byte budget forces eviction of the two oldest
	// entries before Open returns.
	reopened, err := Open("/cache", 100, WithFS(fsys))
	require.NoError(t, err)
	defer reopened.Close()

	assert.LessOrEqual(t, reopened.Size(), int64(100))
	assert.Equal(t, 1, reopened.Len())

	ok, err := reopened.Contains(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok, "most recent entry should survive the budget cut")
}

// plantArtifact writes a valid artifact for key directly into the cache
// directory, bypassing the index, to simulate a crash between an artifact
// rename and the index persist.
func plantArtifact(t *testing.T, fsys *billy.MemoryFS, key string, payload []byte) {
	t.Helper()

	payloadSum := sha256.Sum256(payload)
	header := hex.EncodeToString(payloadSum[:]) + "\n" + strconv.Quote(key) + "\n"

	keySum := sha256.Sum256([]byte(key))
	path := "/cache/entries/" + hex.EncodeToString(keySum[:])
	require.NoError(t, fsys.WriteFile(path, append([]byte(header), payload...), 0o644))
}

func TestCache_ReopenAccountsStaleIndexSize(t *testing.T) {
	fsys := billy.NewMemory()
	ctx := context.Background()

	c, err := Open("/cache", 1024, WithFS(fsys))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", make([]byte, 10)))
	require.NoError(t, c.Close())

	// The replacement write committed but its index update was lost.
	plantArtifact(t, fsys, "k", make([]byte, 50))

	reopened, err := Open("/cache", 1024, WithFS(fsys))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, int64(50), reopened.Size(), "accounting must match the payload on disk")
}

func TestCache_GetCorrectsAccountedSize(t *testing.T) {
	fsys := billy.NewMemory()
	ctx := context.Background()

	c, err := Open("/cache", 1024, WithFS(fsys))
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put(ctx, "k", make([]byte, 10)))

	// An artifact replaced behind the running cache's back leaves the
	// recorded size stale until the next read observes the real payload.
	plantArtifact(t, fsys, "k", make([]byte, 50))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 50)
	assert.Equal(t, int64(50), c.Size(), "accounting must follow the corrected size")
}

func TestCache_OperationsAfterClose(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key", []byte("value")))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close should be idempotent")

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, c.Put(ctx, "key", []byte("value")), ErrClosed)
	assert.ErrorIs(t, c.Delete(ctx, "key"), ErrClosed)

	_, err = c.Contains(ctx, "key")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCache_CancelledContext(t *testing.T) {
	c := newTestCache(t, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "key")
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, c.Put(ctx, "key", []byte("value")), context.Canceled)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t, 10_000)
	ctx := context.Background()

	const goroutines = 8
	const opsPerGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i%10)
				switch i % 4 {
				case 0, 1:
					if err := c.Put(ctx, key, []byte(key)); err != nil {
						t.Errorf("Put(%q) failed: %v", key, err)
					}
				case 2:
					if _, err := c.Get(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
						t.Errorf("Get(%q) failed: %v", key, err)
					}
				case 3:
					if err := c.Delete(ctx, key); err != nil {
						t.Errorf("Delete(%q) failed: %v", key, err)
					}
				}

				// Size accounting must never diverge from what eviction
				// guarantees: every payload fits, so the budget holds.
				size := c.Size()
				if size < 0 || size > c.MaxSize() {
					t.Errorf("Size = %d, outside [0, %d]", size, c.MaxSize())
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestCache_MetricsRecorded(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key", []byte("value")))
	_, err := c.Get(ctx, "key")
	require.NoError(t, err)
	_, err = c.Get(ctx, "missing")
	require.Error(t, err)
	require.NoError(t, c.Delete(ctx, "key"))

	snap := c.Metrics()
	assert.Equal(t, int64(1), snap.Puts)
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(1), snap.Deletes)
	assert.InDelta(t, 0.5, snap.HitRate, 0.001)
	assert.Equal(t, int64(0), snap.BytesStored)
	assert.Equal(t, int64(len("value")), snap.BytesRetrieved)
}
