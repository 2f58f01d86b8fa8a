package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmgilman/go/fs/core"
)

// Entry holds the metadata the store tracks for one key. The payload itself
// lives in the key's artifact on disk; Entry is what the index persists.
type Entry struct {
	// Key is the unique identifier for the entry.
	Key string `json:"key"`
	// Size is the byte length of the stored payload.
	Size int64 `json:"size"`
	// LastAccess is a logical sequence number refreshed on every successful
	// read or write of the key. It defines eviction order: lower is older.
	LastAccess uint64 `json:"last_access"`
}

// index is the key -> Entry mapping backing the store. It avoids disk reads
// for existence checks and carries LRU ordering across restarts.
//
// The index performs no locking of its own: the store is single-writer by
// contract and the cache facade serializes all access.
type index struct {
	fsys    core.FS
	path    string
	entries map[string]*Entry
}

func newIndex(fsys core.FS, path string) *index {
	return &index{
		fsys:    fsys,
		path:    path,
		entries: make(map[string]*Entry),
	}
}

// load reads the persisted index, one JSON entry per line. Unparseable lines
// are skipped so a torn write cannot prevent the cache from opening; the
// store reconciles the result against the artifacts on disk afterwards.
func (idx *index) load() error {
	exists, err := idx.fsys.Exists(idx.path)
	if err != nil {
		return fault("check index file", err)
	}
	if !exists {
		return nil
	}

	file, err := idx.fsys.Open(idx.path)
	if err != nil {
		return fault("open index file", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Key == "" {
			continue
		}

		idx.entries[entry.Key] = &entry
	}
	if err := scanner.Err(); err != nil {
		return fault("read index file", err)
	}

	return nil
}

// persist writes the index to a temporary file and atomically renames it
// into place. Entries are written in key order for deterministic output.
func (idx *index) persist() error {
	tempPath := idx.path + ".tmp"

	dir := filepath.Dir(idx.path)
	if err := idx.fsys.MkdirAll(dir, 0o755); err != nil {
		return fault("create index directory", err)
	}

	file, err := idx.fsys.Create(tempPath)
	if err != nil {
		return fault("create temp index file", err)
	}

	keys := make([]string, 0, len(idx.entries))
	for key := range idx.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	writer := bufio.NewWriter(file)
	for _, key := range keys {
		data, err := json.Marshal(idx.entries[key])
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to marshal index entry: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			file.Close()
			return fault("write index entry", err)
		}
		if _, err := writer.WriteString("\n"); err != nil {
			file.Close()
			return fault("write index entry", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fault("flush index file", err)
	}

	if syncer, ok := file.(core.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			file.Close()
			return fault("sync index file", err)
		}
	}
	if err := file.Close(); err != nil {
		return fault("close index file", err)
	}

	if err := idx.fsys.Rename(tempPath, idx.path); err != nil {
		return fault("rename index file", err)
	}

	return nil
}

// byLastAccess returns a snapshot of all entries sorted ascending by
// LastAccess, oldest first. Ties are broken by key so removal order among
// equal timestamps is deterministic.
func (idx *index) byLastAccess() []Entry {
	entries := make([]Entry, 0, len(idx.entries))
	for _, entry := range idx.entries {
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastAccess != entries[j].LastAccess {
			return entries[i].LastAccess < entries[j].LastAccess
		}
		return entries[i].Key < entries[j].Key
	})

	return entries
}

// totalSize returns the sum of all entry sizes.
func (idx *index) totalSize() int64 {
	var total int64
	for _, entry := range idx.entries {
		total += entry.Size
	}
	return total
}

// maxLastAccess returns the highest LastAccess sequence currently recorded.
func (idx *index) maxLastAccess() uint64 {
	var max uint64
	for _, entry := range idx.entries {
		if entry.LastAccess > max {
			max = entry.LastAccess
		}
	}
	return max
}
