package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

// BoltStore implements RecordStore on a single bbolt database file.
// Each bucket maps to a bbolt bucket, created on first write.
type BoltStore struct {
	db *bbolt.DB
}

var _ RecordStore = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist. buckets are
// created up front so reads never race bucket creation.
func OpenBoltStore(dbPath string, buckets ...string) (*BoltStore, error) {
	if dbPath == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrIOFailure, err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrIOFailure, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if err := validateName("bucket", name); err != nil {
				return err
			}
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapBolt(err)
	}

	return &BoltStore{db: db}, nil
}

// Path returns the database file location.
func (s *BoltStore) Path() string { return s.db.Path() }

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Get retrieves a record.
func (s *BoltStore) Get(bucket, key string) ([]byte, error) {
	if err := validateRef(bucket, key); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction.
		out = cloneBytes(v)
		return nil
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	return out, nil
}

// Put stores a record.
func (s *BoltStore) Put(bucket, key string, value []byte) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), nonNil(value))
	})
	return wrapBolt(err)
}

// Delete removes a record.
func (s *BoltStore) Delete(bucket, key string) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil || b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
	return wrapBolt(err)
}

// Keys lists the records in bucket. bbolt iterates keys in byte order.
func (s *BoltStore) Keys(bucket string) ([]string, error) {
	if err := validateName("bucket", bucket); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, wrapBolt(err)
	}
	return keys, nil
}

// Update runs fn inside a single read-write bbolt transaction.
func (s *BoltStore) Update(bucket, key string, fn func(old []byte) ([]byte, error)) error {
	if err := validateRef(bucket, key); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		next, err := fn(cloneBytes(b.Get([]byte(key))))
		if err != nil {
			return callerError{err}
		}
		return b.Put([]byte(key), nonNil(next))
	})
	var ce callerError
	if errors.As(err, &ce) {
		return ce.err
	}
	return wrapBolt(err)
}

// callerError carries an error returned by an Update callback through the
// bbolt transaction without reclassifying it.
type callerError struct{ err error }

func (c callerError) Error() string { return c.err.Error() }
func (c callerError) Unwrap() error { return c.err }

// wrapBolt classifies raw bbolt failures as ErrIOFailure and passes the
// store's own sentinels through.
func wrapBolt(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidName):
		return err
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return ErrClosed
	default:
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
}

// nonNil maps a nil value to an empty slice; bbolt rejects nil values.
func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}
