// Package kvstore is the persistence collaborator: a string key-value store
// with SQLite, file and in-memory backends.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raysh454/medtriage/internal/logging"
)

// Store is a durable string key-value store. Set must be atomic from the
// reader's point of view: a concurrent or later Get sees either the previous
// value or the new one, never a partial write.
type Store interface {
	// Get returns the value for key. ok is false when the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Update replaces the value under key with fn's result in one atomic
	// read-modify-write. Updates on the same key never interleave, across
	// goroutines or across stores opened on the same location. If fn returns
	// an error nothing is written and that error is returned unchanged.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Close releases resources held by the store.
	Close() error
}

// UpdateFunc computes the next value from the current one. ok is false when
// the key was never set.
type UpdateFunc func(old string, ok bool) (string, error)

// Backend names a Store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kvstore: store is closed")

// Open constructs the named backend rooted at dir. An empty backend selects SQLite.
func Open(backend Backend, dir string, logger logging.Logger) (Store, error) {
	if logger == nil {
		return nil, errors.New("kvstore: nil logger provided")
	}
	switch Backend(strings.ToLower(strings.TrimSpace(string(backend)))) {
	case BackendSQLite, "":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(dir, "medtriage.db"), logger)
	case BackendFile:
		return NewFileStore(filepath.Join(dir, "kv"), logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", backend)
	}
}
