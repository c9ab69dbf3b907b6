package wallet

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrInvalidKeyMaterial indicates key material that is neither a 32-byte
	// hex private key nor a valid WIF string.
	ErrInvalidKeyMaterial = fault.New(fault.KindValidation, "InvalidKeyMaterial", "wallet: invalid key material")

	// ErrInvalidPublicKey indicates bytes that do not decode to a secp256k1 point.
	ErrInvalidPublicKey = fault.New(fault.KindValidation, "InvalidPublicKey", "wallet: invalid public key")

	// ErrWalletNotFound indicates the referenced key record does not exist.
	ErrWalletNotFound = fault.New(fault.KindNotFound, "WalletNotFound", "wallet: wallet not found")

	// ErrWalletExists indicates a dedicated wallet is already provisioned for the pool.
	ErrWalletExists = fault.New(fault.KindInternal, "WalletExists", "wallet: dedicated wallet already exists")

	// ErrNoCommunityWalletsAvailable indicates the community set is empty.
	ErrNoCommunityWalletsAvailable = fault.New(fault.KindCapacity, "NoCommunityWalletsAvailable", "wallet: no community wallets available")

	// ErrDecryptionFailed indicates wrong passphrase or corrupted key record.
	ErrDecryptionFailed = fault.New(fault.KindInternal, "KeyDecryptionFailed", "wallet: key decryption failed (wrong passphrase or corrupted data)")

	// ErrChecksumMismatch indicates key checksum verification failed after decryption.
	ErrChecksumMismatch = fault.New(fault.KindInternal, "KeyDecryptionFailed", "wallet: key checksum mismatch")

	// ErrCorruptKeyRecord indicates a stored key record could not be decoded.
	ErrCorruptKeyRecord = fault.New(fault.KindStorage, "CorruptKeyRecord", "wallet: corrupt key record")

	// ErrEmptyPassphrase indicates no passphrase was configured for sealing keys.
	ErrEmptyPassphrase = fault.New(fault.KindValidation, "InvalidConfig", "wallet: key passphrase is empty")

	// ErrInvalidKDFParams indicates zero Argon2id cost parameters.
	ErrInvalidKDFParams = fault.New(fault.KindValidation, "InvalidConfig", "wallet: invalid KDF parameters")

	// ErrInvalidNetwork indicates unknown network name.
	ErrInvalidNetwork = fault.New(fault.KindValidation, "InvalidConfig", "wallet: invalid network name")

	// ErrInvalidWalletRef indicates a wallet reference outside the dedicated bucket.
	ErrInvalidWalletRef = fault.New(fault.KindValidation, "InvalidWalletRef", "wallet: invalid wallet reference")
)
