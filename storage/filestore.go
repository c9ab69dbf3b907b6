package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const tempPrefix = ".tmp-"

// FileStore implements RecordStore using the local filesystem.
// Records are stored at: {baseDir}/{bucket}/{key}
// Writes go to a temp file in the same directory and are renamed into place.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

var _ RecordStore = (*FileStore)(nil)

// NewFileStore creates a new file-based record store.
// baseDir is typically "~/.sponsor/records". The directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

// RecordPath converts a bucket and key to its filesystem path.
func RecordPath(baseDir, bucket, key string) string {
	return filepath.Join(baseDir, bucket, key)
}

func (fs *FileStore) bucketDir(bucket string) string {
	return filepath.Join(fs.baseDir, bucket)
}

// Get retrieves a record.
func (fs *FileStore) Get(bucket, key string) ([]byte, error) {
	if err := validateRef(bucket, key); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.read(bucket, key)
}

func (fs *FileStore) read(bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(RecordPath(fs.baseDir, bucket, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return data, nil
}

// Put stores a record, replacing it atomically.
func (fs *FileStore) Put(bucket, key string, value []byte) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.write(bucket, key, value)
}

// write replaces the record via temp file + fsync + rename.
func (fs *FileStore) write(bucket, key string, value []byte) error {
	dir := fs.bucketDir(bucket)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+key+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, RecordPath(fs.baseDir, bucket, key)); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Delete removes a record.
func (fs *FileStore) Delete(bucket, key string) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(RecordPath(fs.baseDir, bucket, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// Keys lists the records in bucket, skipping in-flight temp files.
func (fs *FileStore) Keys(bucket string) ([]string, error) {
	if err := validateName("bucket", bucket); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.bucketDir(bucket))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Update runs fn under the store's write lock.
func (fs *FileStore) Update(bucket, key string, fn func(old []byte) ([]byte, error)) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	old, err := fs.read(bucket, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	next, err := fn(old)
	if err != nil {
		return err
	}
	return fs.write(bucket, key, next)
}

// Close is a no-op; FileStore holds no open handles.
func (fs *FileStore) Close() error { return nil }
