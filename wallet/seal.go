package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Default Argon2id parameters for key sealing.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Sealed format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4
)

// KDFParams are the Argon2id cost parameters used to seal one key record.
// They are stored next to the sealed bytes so a record stays readable after
// the defaults change.
type KDFParams struct {
	Time        uint32 `json:"time"`
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams returns the production Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: Argon2Time, Memory: Argon2Memory, Parallelism: Argon2Parallelism}
}

func (p KDFParams) valid() bool {
	return p.Time > 0 && p.Memory > 0 && p.Parallelism > 0
}

func (p KDFParams) deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Parallelism, Argon2KeyLen)
}

// SealKey encrypts raw private key bytes with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(passphrase,salt), nonce, key||checksum)
//
// The checksum is SHA256(key)[:4] for verifying correct decryption.
func SealKey(raw []byte, passphrase string, params KDFParams) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidKeyMaterial
	}
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if !params.valid() {
		return nil, fmt.Errorf("%w: zero KDF parameter", ErrInvalidKDFParams)
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}

	sum := sha256.Sum256(raw)
	plaintext := make([]byte, len(raw)+ChecksumLen)
	copy(plaintext, raw)
	copy(plaintext[len(raw):], sum[:ChecksumLen])

	gcm, err := newGCM(params.deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, SaltLen+NonceLen+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

// OpenKey reverses SealKey. A wrong passphrase or any tampering yields
// ErrDecryptionFailed.
func OpenKey(sealed []byte, passphrase string, params KDFParams) ([]byte, error) {
	if len(sealed) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	if !params.valid() {
		return nil, fmt.Errorf("%w: zero KDF parameter", ErrInvalidKDFParams)
	}

	salt := sealed[:SaltLen]
	nonce := sealed[SaltLen : SaltLen+NonceLen]
	ciphertext := sealed[SaltLen+NonceLen:]

	gcm, err := newGCM(params.deriveKey(passphrase, salt))
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil || len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	raw := plaintext[:len(plaintext)-ChecksumLen]
	sum := sha256.Sum256(raw)
	if subtle.ConstantTimeCompare(plaintext[len(raw):], sum[:ChecksumLen]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return raw, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}
