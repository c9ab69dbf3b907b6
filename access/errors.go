package access

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrInvalidSignature indicates the signature does not verify over the content hash.
	ErrInvalidSignature = fault.New(fault.KindAuthentication, "InvalidSignature", "access: invalid signature")

	// ErrAddressMismatch indicates the claimed address differs from the one derived from the public key.
	ErrAddressMismatch = fault.New(fault.KindAuthentication, "AddressMismatch", "access: claimed address does not match public key")

	// ErrInvalidPublicKey indicates the public key could not be decoded.
	ErrInvalidPublicKey = fault.New(fault.KindAuthentication, "InvalidPublicKey", "access: invalid public key")

	// ErrInvalidContentHash indicates the content hash is not 32 bytes of hex.
	ErrInvalidContentHash = fault.New(fault.KindValidation, "InvalidContentHash", "access: content hash must be 64 hex characters")

	// ErrPoolNotActive indicates the request falls outside the pool's time window.
	ErrPoolNotActive = fault.New(fault.KindAuthorization, "PoolNotActive", "access: pool is not active")

	// ErrWalletNotWhitelisted indicates the signer is not on the pool whitelist.
	ErrWalletNotWhitelisted = fault.New(fault.KindAuthorization, "WalletNotWhitelisted", "access: wallet address not in whitelist")

	// ErrNotPoolOwner indicates the requester did not create the pool.
	ErrNotPoolOwner = fault.New(fault.KindAuthorization, "NotPoolOwner", "access: requester does not own the pool")
)
