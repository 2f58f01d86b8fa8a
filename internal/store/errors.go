package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when reading a key that has no entry.
var ErrNotFound = errors.New("entry not found")

// ErrStorage is returned when an operation fails because of an underlying
// I/O fault (disk error, permission failure, disk full).
var ErrStorage = errors.New("storage fault")

// ErrCorrupted is returned when an artifact fails checksum verification.
// It wraps ErrStorage, so errors.Is(err, ErrStorage) also matches.
var ErrCorrupted = fmt.Errorf("entry is corrupted: %w", ErrStorage)

// fault wraps an underlying I/O error as a storage fault while keeping the
// original error text for diagnostics.
func fault(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
