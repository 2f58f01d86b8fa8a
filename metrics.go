package diskcache

import (
	"sync"
	"time"
)

// Metrics collects operational statistics for a cache. All methods are safe
// for concurrent use; the cache records into it from inside its critical
// sections while callers may snapshot it at any time.
type Metrics struct {
	mu sync.RWMutex

	hits   int64
	misses int64

	puts      int64
	deletes   int64
	evictions int64
	errors    int64

	bytesStored    int64
	bytesEvicted   int64
	bytesRetrieved int64
	entries        int64

	startTime        time.Time
	lastEvictionTime time.Time

	peakBytesStored int64
	peakEntries     int64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordHit records a successful read of size bytes.
func (m *Metrics) RecordHit(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.bytesRetrieved += size
}

// RecordMiss records a read of an absent key.
func (m *Metrics) RecordMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

// RecordPut records a successful write. prevSize is the size of the value
// it replaced; replaced reports whether the key already existed.
func (m *Metrics) RecordPut(size, prevSize int64, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	m.bytesStored += size - prevSize
	if !replaced {
		m.entries++
	}

	if m.bytesStored > m.peakBytesStored {
		m.peakBytesStored = m.bytesStored
	}
	if m.entries > m.peakEntries {
		m.peakEntries = m.entries
	}
}

// RecordDelete records a successful delete of size bytes.
func (m *Metrics) RecordDelete(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	m.bytesStored -= size
	m.entries--
	if m.entries < 0 {
		m.entries = 0
	}
}

// RecordEviction records an evicted entry of size bytes.
func (m *Metrics) RecordEviction(size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictions++
	m.bytesStored -= size
	m.bytesEvicted += size
	m.entries--
	if m.entries < 0 {
		m.entries = 0
	}
	m.lastEvictionTime = time.Now()
}

// RecordError records an operation error.
func (m *Metrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// Snapshot returns a point-in-time view of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hitRate float64
	if total := m.hits + m.misses; total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:            m.hits,
		Misses:          m.misses,
		HitRate:         hitRate,
		Puts:            m.puts,
		Deletes:         m.deletes,
		Evictions:       m.evictions,
		Errors:          m.errors,
		BytesStored:     m.bytesStored,
		BytesEvicted:    m.bytesEvicted,
		BytesRetrieved:  m.bytesRetrieved,
		Entries:         m.entries,
		PeakBytesStored: m.peakBytesStored,
		PeakEntries:     m.peakEntries,
		Uptime:          time.Since(m.startTime),
	}
}

// Reset clears all metrics data.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits = 0
	m.misses = 0
	m.puts = 0
	m.deletes = 0
	m.evictions = 0
	m.errors = 0
	m.bytesStored = 0
	m.bytesEvicted = 0
	m.bytesRetrieved = 0
	m.entries = 0
	m.peakBytesStored = 0
	m.peakEntries = 0
	m.startTime = time.Now()
	m.lastEvictionTime = time.Time{}
}

// MetricsSnapshot provides a point-in-time view of cache metrics.
type MetricsSnapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`

	Puts      int64 `json:"puts"`
	Deletes   int64 `json:"deletes"`
	Evictions int64 `json:"evictions"`
	Errors    int64 `json:"errors"`

	BytesStored    int64 `json:"bytes_stored"`
	BytesEvicted   int64 `json:"bytes_evicted"`
	BytesRetrieved int64 `json:"bytes_retrieved"`
	Entries        int64 `json:"entries"`

	PeakBytesStored int64 `json:"peak_bytes_stored"`
	PeakEntries     int64 `json:"peak_entries"`

	Uptime time.Duration `json:"uptime"`
}
