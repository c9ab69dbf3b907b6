package storage

import (
	"fmt"

	"github.com/bitfsorg/sponsor-go/fault"
)

var (
	// ErrNotFound indicates no record exists for the given bucket and key.
	ErrNotFound = fault.New(fault.KindNotFound, "RecordNotFound", "storage: record not found")

	// ErrInvalidName indicates an empty or path-like bucket or key name.
	ErrInvalidName = fault.New(fault.KindValidation, "InvalidRecordName", "storage: invalid bucket or key name")

	// ErrIOFailure indicates a read or write against the backing medium failed.
	ErrIOFailure = fault.New(fault.KindStorage, "StorageFailure", "storage: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = fault.New(fault.KindValidation, "InvalidConfig", "storage: invalid base directory")

	// ErrClosed indicates the store was used after Close.
	ErrClosed = fault.New(fault.KindStorage, "StorageClosed", "storage: store is closed")
)

func invalidName(kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
}
