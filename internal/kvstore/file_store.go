package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/utils"
)

// FileStore keeps one file per key under dir. Values are replaced with
// utils.AtomicWriteFile so a crash mid-write leaves the previous value intact.
type FileStore struct {
	dir    string
	logger logging.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a FileStore rooted there.
func NewFileStore(dir string, logger logging.Logger) (*FileStore, error) {
	if logger == nil {
		return nil, errors.New("kvstore: nil logger provided")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.With(logging.Field{Key: "component", Value: "kvstore.file"})}, nil
}

func (fs *FileStore) keyPath(key string) string {
	return filepath.Join(fs.dir, utils.SanitizeFileName(key)+".value")
}

// Get reads the file for key.
func (fs *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(fs.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set atomically replaces the file for key.
func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := utils.AtomicWriteFile(fs.keyPath(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	fs.logger.Debug("stored value", logging.Field{Key: "key", Value: key}, logging.Field{Key: "bytes", Value: len(value)})
	return nil
}

const (
	lockPollInterval = 10 * time.Millisecond
	// staleLockAge frees a lock left behind by a process that died holding it.
	staleLockAge = 30 * time.Second
)

// Update holds <key>.lock for the read-modify-write. The lock file is created
// with O_EXCL, so any process sharing dir waits for the holder to remove it.
func (fs *FileStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock, err := fs.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	old, ok, err := fs.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(old, ok)
	if err != nil {
		return err
	}
	return fs.Set(ctx, key, next)
}

func (fs *FileStore) lock(ctx context.Context, key string) (func(), error) {
	lockPath := filepath.Join(fs.dir, utils.SanitizeFileName(key)+".lock")
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			f.Close()
			return func() {
				if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
					fs.logger.Warn("failed to release lock", logging.Field{Key: "key", Value: key}, logging.Err(err))
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("lock key %q: %w", key, err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			fs.logger.Warn("removing stale lock", logging.Field{Key: "key", Value: key})
			_ = os.Remove(lockPath)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close is a no-op.
func (fs *FileStore) Close() error {
	return nil
}
