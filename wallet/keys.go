// Package wallet manages the funding keys that pay for sponsored deploys.
//
// A pool owns exactly one dedicated key, generated at pool creation and
// destroyed with the pool. Community keys are enrolled by an operator and
// chosen at random for non-pool deploys. Key records are sealed at rest with
// Argon2id + AES-256-GCM.
package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// PrivateKeyLen is the length of a raw secp256k1 private key.
const PrivateKeyLen = 32

// Key is a funding key with its derived P2PKH address.
type Key struct {
	priv    *ec.PrivateKey
	Address string
	Network *NetworkConfig
}

// GenerateKey creates a fresh random funding key.
func GenerateKey(net *NetworkConfig) (*Key, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return newKey(priv, net)
}

// ParseKeyMaterial accepts a 64-char hex private key or a WIF string.
func ParseKeyMaterial(material string, net *NetworkConfig) (*Key, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, ErrInvalidKeyMaterial
	}

	if len(material) == 2*PrivateKeyLen {
		if raw, err := hex.DecodeString(material); err == nil {
			return keyFromRaw(raw, net)
		}
	}

	priv, err := ec.PrivateKeyFromWif(material)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	return newKey(priv, net)
}

// keyFromRaw builds a Key from 32 raw scalar bytes, rejecting zero and
// out-of-range values.
func keyFromRaw(raw []byte, net *NetworkConfig) (*Key, error) {
	if len(raw) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyMaterial, len(raw))
	}
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(ec.S256().Params().N) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidKeyMaterial)
	}
	priv, _ := ec.PrivateKeyFromBytes(raw)
	return newKey(priv, net)
}

func newKey(priv *ec.PrivateKey, net *NetworkConfig) (*Key, error) {
	if net == nil {
		net = &MainNet
	}
	addr, err := DeriveAddress(priv.PubKey(), net)
	if err != nil {
		return nil, err
	}
	return &Key{priv: priv, Address: addr, Network: net}, nil
}

// PublicKey returns the key's public point.
func (k *Key) PublicKey() *ec.PublicKey { return k.priv.PubKey() }

// PublicKeyHex returns the compressed public key as hex.
func (k *Key) PublicKeyHex() string { return hex.EncodeToString(k.priv.PubKey().Compressed()) }

// Sign produces a DER-encoded ECDSA signature over digest.
func (k *Key) Sign(digest []byte) ([]byte, error) {
	sig, err := k.priv.Sign(digest)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign: %w", err)
	}
	return sig.Serialize(), nil
}

// WIF returns the private key in wallet import format.
func (k *Key) WIF() string { return k.priv.Wif() }

func (k *Key) raw() []byte { return k.priv.Serialize() }

// String never prints secret material.
func (k *Key) String() string { return "wallet.Key(" + k.Address + ")" }

// DeriveAddress returns the P2PKH address of pub on net.
func DeriveAddress(pub *ec.PublicKey, net *NetworkConfig) (string, error) {
	if pub == nil {
		return "", ErrInvalidPublicKey
	}
	addr, err := script.NewAddressFromPublicKey(pub, net.IsMainnet())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return addr.AddressString, nil
}

// ParsePublicKeyHex decodes a hex SEC1 public key (compressed or not).
func ParsePublicKeyHex(s string) (*ec.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) == 0 {
		return nil, ErrInvalidPublicKey
	}
	pub, err := ec.PublicKeyFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// ValidateAddress reports whether s is a well-formed P2PKH address.
func ValidateAddress(s string) bool {
	_, err := script.NewAddressFromString(s)
	return err == nil
}
