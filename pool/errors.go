package pool

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrPoolNotFound indicates no pool exists with the given id.
	ErrPoolNotFound = fault.New(fault.KindNotFound, "PoolNotFound", "pool: pool not found")

	// ErrPoolLimitExceeded indicates the creator already owns the maximum number of pools.
	ErrPoolLimitExceeded = fault.New(fault.KindCapacity, "PoolLimitExceeded", "pool: creator pool limit exceeded")

	// ErrInvalidTimeRange indicates startTime is not strictly before endTime.
	ErrInvalidTimeRange = fault.New(fault.KindValidation, "InvalidTimeRange", "pool: end time must be after start time")

	// ErrMissingField indicates a required pool field is empty or zero.
	ErrMissingField = fault.New(fault.KindValidation, "MissingField", "pool: missing required field")

	// ErrInvalidAddress indicates a creator or whitelist entry is not a valid address.
	ErrInvalidAddress = fault.New(fault.KindValidation, "InvalidAddress", "pool: invalid wallet address")

	// ErrUsageAboveCap indicates a usage mutation would leave a wallet above the cap.
	ErrUsageAboveCap = fault.New(fault.KindCapacity, "UsageCapExceeded", "pool: usage above cap")

	// ErrCorruptCollection indicates the persisted pool collection could not be decoded.
	ErrCorruptCollection = fault.New(fault.KindStorage, "CorruptPoolCollection", "pool: corrupt pool collection")
)
