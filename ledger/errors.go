package ledger

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrUsageCapExceeded indicates the estimate does not fit in the wallet's remaining allowance.
	ErrUsageCapExceeded = fault.New(fault.KindCapacity, "UsageCapExceeded", "ledger: usage cap exceeded")

	// ErrReservationSettled indicates the reservation was already committed or released.
	ErrReservationSettled = fault.New(fault.KindInternal, "ReservationSettled", "ledger: reservation already settled")

	// ErrInvalidReservation indicates a nil or foreign reservation.
	ErrInvalidReservation = fault.New(fault.KindInternal, "InvalidReservation", "ledger: invalid reservation")

	// ErrMissingWallet indicates Reserve was called without a wallet address.
	ErrMissingWallet = fault.New(fault.KindValidation, "MissingWallet", "ledger: wallet address required")
)
