// Package store implements the durable entry store behind the disk cache:
// one artifact per key, atomic writes, checksum verification on read, and a
// persisted index carrying size accounting and LRU ordering across restarts.
//
// The store performs no locking of its own. Callers must serialize access;
// the cache facade holds a single mutex around every operation.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jmgilman/go/fs/core"
)

const (
	entriesDir = "entries"
	tempDir    = ".tmp"
	indexFile  = "index.db"
)

// Store is a durable mapping from key to payload rooted at one directory of
// a core.FS filesystem. Artifacts are named by the SHA-256 of their key, so
// lookup never scans the directory and arbitrary key strings are safe.
type Store struct {
	fsys  core.FS
	root  string
	idx   *index
	clock uint64
	dirty bool
}

// Open binds a store to the given directory, creating it if necessary, and
// recovers any state left by a previous process. Recovery loads the
// persisted index and reconciles it against the artifacts actually on disk:
// index entries without an artifact are dropped, committed artifacts missing
// from the index are re-adopted (the artifact is the commit point), and
// artifacts that fail checksum verification are removed.
func Open(fsys core.FS, root string) (*Store, error) {
	if fsys == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	if root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}

	for _, dir := range []string{root, filepath.Join(root, entriesDir), filepath.Join(root, tempDir)} {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fault("create store directory", err)
		}
	}

	s := &Store{
		fsys: fsys,
		root: root,
		idx:  newIndex(fsys, filepath.Join(root, indexFile)),
	}

	if err := s.idx.load(); err != nil {
		return nil, err
	}
	if err := s.recover(); err != nil {
		return nil, err
	}
	s.clock = s.idx.maxLastAccess()

	if err := s.Sync(); err != nil {
		return nil, err
	}

	return s, nil
}

// recover reconciles the loaded index with the entries directory.
func (s *Store) recover() error {
	dirEntries, err := s.fsys.ReadDir(filepath.Join(s.root, entriesDir))
	if err != nil {
		return fault("read entries directory", err)
	}

	onDisk := make(map[string]fs.DirEntry, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			onDisk[de.Name()] = de
		}
	}

	// Drop index entries whose artifact vanished, and correct sizes the
	// index recorded before a replacement artifact landed: a crash between
	// the artifact rename and the index persist leaves the old size behind.
	for key, entry := range s.idx.entries {
		de, ok := onDisk[artifactName(key)]
		if !ok {
			delete(s.idx.entries, key)
			continue
		}
		info, err := de.Info()
		if err != nil {
			return fault("stat entry", err)
		}
		entry.Size = payloadSize(key, info.Size())
	}

	known := make(map[string]bool, len(s.idx.entries))
	for key := range s.idx.entries {
		known[artifactName(key)] = true
	}

	// Adopt committed artifacts the index never recorded. They were written
	// after the last index persist, so treat them as the most recent.
	// Names are sorted so adoption order is deterministic.
	var unknown []string
	for name := range onDisk {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	adopt := s.idx.maxLastAccess()
	for _, name := range unknown {
		key, payload, err := s.readArtifact(name)
		if err != nil {
			// Unreadable or corrupt leftovers are removed rather than
			// resurrected with unknown contents.
			_ = s.fsys.Remove(filepath.Join(s.root, entriesDir, name))
			continue
		}
		adopt++
		s.idx.entries[key] = &Entry{Key: key, Size: int64(len(payload)), LastAccess: adopt}
	}

	// Leftover temp files from interrupted writes are garbage.
	tempEntries, err := s.fsys.ReadDir(filepath.Join(s.root, tempDir))
	if err != nil {
		return fault("read temp directory", err)
	}
	for _, de := range tempEntries {
		_ = s.fsys.Remove(filepath.Join(s.root, tempDir, de.Name()))
	}

	s.dirty = true
	return nil
}

// Exists reports whether the store holds an entry for key. It consults only
// the index and does not touch the artifact or refresh recency.
func (s *Store) Exists(key string) (bool, error) {
	_, ok := s.idx.entries[key]
	return ok, nil
}

// Read returns the payload stored for key and refreshes its recency.
// It returns ErrNotFound for an absent key and ErrCorrupted if the artifact
// fails checksum verification.
func (s *Store) Read(key string) ([]byte, error) {
	entry, ok := s.idx.entries[key]
	if !ok {
		return nil, ErrNotFound
	}

	storedKey, payload, err := s.readArtifact(artifactName(key))
	if err != nil {
		return nil, err
	}
	if storedKey != key {
		return nil, ErrCorrupted
	}

	s.clock++
	entry.LastAccess = s.clock
	entry.Size = int64(len(payload))
	s.dirty = true

	return payload, nil
}

// Write durably stores payload for key, replacing any prior value. The
// payload is written to a temporary file, flushed, and atomically renamed
// into place, so a failed or interrupted write leaves the prior value
// intact. The index is updated in memory; call Sync to persist it.
func (s *Store) Write(key string, payload []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	name := artifactName(key)
	tempPath := filepath.Join(s.root, tempDir, name)
	finalPath := filepath.Join(s.root, entriesDir, name)

	file, err := s.fsys.Create(tempPath)
	if err != nil {
		return fault("create temp file", err)
	}

	if err := writeArtifact(file, key, payload); err != nil {
		file.Close()
		_ = s.fsys.Remove(tempPath)
		return fault("write temp file", err)
	}

	if syncer, ok := file.(core.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			file.Close()
			_ = s.fsys.Remove(tempPath)
			return fault("sync temp file", err)
		}
	}
	if err := file.Close(); err != nil {
		_ = s.fsys.Remove(tempPath)
		return fault("close temp file", err)
	}

	if err := s.fsys.Rename(tempPath, finalPath); err != nil {
		_ = s.fsys.Remove(tempPath)
		return fault("commit entry", err)
	}

	s.clock++
	s.idx.entries[key] = &Entry{Key: key, Size: int64(len(payload)), LastAccess: s.clock}
	s.dirty = true

	return nil
}

// Remove deletes the entry for key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	path := filepath.Join(s.root, entriesDir, artifactName(key))

	exists, err := s.fsys.Exists(path)
	if err != nil {
		return fault("check entry", err)
	}
	if exists {
		if err := s.fsys.Remove(path); err != nil {
			return fault("remove entry", err)
		}
	}

	if _, ok := s.idx.entries[key]; ok {
		delete(s.idx.entries, key)
		s.dirty = true
	}

	return nil
}

// SizeOf returns the stored payload size for key and whether the key exists.
func (s *Store) SizeOf(key string) (int64, bool) {
	entry, ok := s.idx.entries[key]
	if !ok {
		return 0, false
	}
	return entry.Size, true
}

// ByLastAccess returns a snapshot of all entries ordered ascending by
// LastAccess, oldest first, with ties broken by key. Eviction consumes it
// front to back and may abandon it at any point.
func (s *Store) ByLastAccess() []Entry {
	return s.idx.byLastAccess()
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return len(s.idx.entries)
}

// TotalSize returns the sum of all live payload sizes.
func (s *Store) TotalSize() int64 {
	return s.idx.totalSize()
}

// Sync persists the index if it has changed since the last persist.
// Payloads are already durable when Write returns; Sync only carries entry
// metadata (sizes, LRU order) across restarts, and recovery rebuilds it from
// the artifacts when it is stale.
func (s *Store) Sync() error {
	if !s.dirty {
		return nil
	}
	if err := s.idx.persist(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close persists the index. The store must not be used afterwards.
func (s *Store) Close() error {
	return s.Sync()
}

// artifactName derives the on-disk file name for a key. Hashing keeps
// arbitrary key strings out of filesystem paths and makes lookup a single
// path derivation.
func artifactName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// payloadSize derives the payload length from an artifact's file size by
// subtracting its header: the checksum line and the quoted key line. A file
// shorter than the header is malformed; Read will reject it as corrupted.
func payloadSize(key string, fileSize int64) int64 {
	header := int64(hex.EncodedLen(sha256.Size)) + 1 + int64(len(strconv.Quote(key))) + 1
	if fileSize < header {
		return 0
	}
	return fileSize - header
}

// writeArtifact writes the artifact format: a payload checksum line, a
// quoted key line, then the raw payload.
func writeArtifact(file core.File, key string, payload []byte) error {
	sum := sha256.Sum256(payload)
	header := hex.EncodeToString(sum[:]) + "\n" + strconv.Quote(key) + "\n"

	if _, err := file.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		return err
	}
	return nil
}

// readArtifact reads and verifies the named artifact, returning the embedded
// key and payload. A malformed header or checksum mismatch yields
// ErrCorrupted; other failures are storage faults.
func (s *Store) readArtifact(name string) (string, []byte, error) {
	data, err := s.fsys.ReadFile(filepath.Join(s.root, entriesDir, name))
	if err != nil {
		return "", nil, fault("read entry", err)
	}

	checksumEnd := bytes.IndexByte(data, '\n')
	if checksumEnd < 0 {
		return "", nil, ErrCorrupted
	}
	keyEnd := bytes.IndexByte(data[checksumEnd+1:], '\n')
	if keyEnd < 0 {
		return "", nil, ErrCorrupted
	}
	keyEnd += checksumEnd + 1

	expected := string(data[:checksumEnd])
	quotedKey := string(data[checksumEnd+1 : keyEnd])
	payload := data[keyEnd+1:]

	key, err := strconv.Unquote(quotedKey)
	if err != nil {
		return "", nil, ErrCorrupted
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != expected {
		return "", nil, ErrCorrupted
	}

	return key, payload, nil
}
