// Package storage provides the durable record store behind the pool
// collection and the wallet key records.
//
// Records are opaque byte values addressed by (bucket, key). Every write
// replaces a value atomically: a reader sees either the old value or the
// new one, never a partial write.
package storage

import "strings"

// RecordStore is a bucketed key/value store with atomic single-record writes.
type RecordStore interface {
	// Get returns a copy of the value stored under key, or ErrNotFound.
	Get(bucket, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(bucket, key string, value []byte) error

	// Delete removes key. Returns ErrNotFound if it does not exist.
	Delete(bucket, key string) error

	// Keys returns every key in bucket in lexical order. A bucket that was
	// never written is empty, not an error.
	Keys(bucket string) ([]string, error)

	// Update performs an atomic read-modify-write of one record. fn receives
	// the current value (nil if absent) and returns the replacement. If fn
	// returns an error nothing is written and the error is returned as is.
	Update(bucket, key string, fn func(old []byte) ([]byte, error)) error

	// Close releases the underlying resources.
	Close() error
}

// validateName rejects names that are empty, hidden, or could escape a
// directory.
func validateName(kind, name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\\\x00") {
		return invalidName(kind, name)
	}
	return nil
}

func validateRef(bucket, key string) error {
	if err := validateName("bucket", bucket); err != nil {
		return err
	}
	return validateName("key", key)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
