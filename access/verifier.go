package access

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/sponsor-go/wallet"
)

// Verifier is the signature capability the controller relies on. Public
// keys and signatures arrive in their client encodings.
type Verifier interface {
	// DeriveAddress returns the wallet address owned by publicKey.
	DeriveAddress(publicKey string) (string, error)

	// Verify reports whether signature was made over digest by publicKey.
	Verify(publicKey string, digest []byte, signature string) (bool, error)
}

// BSVVerifier verifies secp256k1 ECDSA signatures.
//
// Public keys are hex SEC1 points. Signatures are DER, hex or standard
// base64 encoded. Addresses are P2PKH for Network.
type BSVVerifier struct {
	Network *wallet.NetworkConfig
}

var _ Verifier = BSVVerifier{}

// DeriveAddress implements Verifier.
func (v BSVVerifier) DeriveAddress(publicKey string) (string, error) {
	pub, err := wallet.ParsePublicKeyHex(publicKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return wallet.DeriveAddress(pub, v.Network)
}

// Verify implements Verifier. Malformed signatures verify as false.
func (v BSVVerifier) Verify(publicKey string, digest []byte, signature string) (bool, error) {
	pub, err := wallet.ParsePublicKeyHex(publicKey)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	der, ok := decodeSignature(signature)
	if !ok {
		return false, nil
	}
	sig, err := ec.ParseDERSignature(der)
	if err != nil {
		return false, nil
	}
	return sig.Verify(digest, pub), nil
}

// decodeSignature accepts hex or base64. DER starts with 0x30, which is
// 'M' in base64, so a valid hex string is never a DER base64 string.
func decodeSignature(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}
