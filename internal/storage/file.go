package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileName   = ".omni.lock"
	lockRetryDelay = 25 * time.Millisecond
)

// File is a KeyValueStore that keeps one file per key under a root
// directory. Writes are atomic (temp file + rename) and guarded by a
// cross-process lock via github.com/gofrs/flock, so multiple omni
// processes can safely share a data directory.
type File struct {
	root string
	lock *flock.Flock
}

// NewFile creates a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &File{
		root: dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Get implements KeyValueStore.
func (f *File) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	locked, err := f.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquiring read lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquiring read lock for %q: not acquired", key)
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	return data, nil
}

// Set implements KeyValueStore. The value is written to a temp file in the
// same directory and renamed into place so readers never see a torn write.
func (f *File) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring write lock for %q: not acquired", key)
	}
	defer func() { _ = f.lock.Unlock() }()

	tmp, err := os.CreateTemp(f.root, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %q: %w", key, err)
	}
	return nil
}

// Delete implements KeyValueStore.
func (f *File) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquiring write lock for %q: not acquired", key)
	}
	defer func() { _ = f.lock.Unlock() }()

	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.root, key)
}
