// Package access decides whether an uploader may spend from a pool.
//
// Authentication binds the uploader to a public key by checking a signature
// over the content hash. The client-supplied address is never trusted: it
// must equal the address derived from the verified key.
package access

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bitfsorg/sponsor-go/pool"
)

// Controller authenticates uploaders and authorizes them against pools.
type Controller struct {
	verifier Verifier
}

// NewController returns a Controller using v for signature checks.
func NewController(v Verifier) *Controller {
	return &Controller{verifier: v}
}

// Authenticate verifies signature over contentHash (hex SHA-256) with
// publicKey and returns the signer's derived address. A non-empty
// claimedAddress must match it.
func (c *Controller) Authenticate(contentHash, signature, publicKey, claimedAddress string) (string, error) {
	digest, err := hex.DecodeString(strings.TrimSpace(contentHash))
	if err != nil || len(digest) != 32 {
		return "", ErrInvalidContentHash
	}

	address, err := c.verifier.DeriveAddress(publicKey)
	if err != nil {
		return "", err
	}

	ok, err := c.verifier.Verify(publicKey, digest, signature)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidSignature
	}

	if claimed := strings.TrimSpace(claimedAddress); claimed != "" && claimed != address {
		return "", fmt.Errorf("%w: claimed %s, key belongs to %s", ErrAddressMismatch, claimed, address)
	}
	return address, nil
}

// Authorize checks that now is inside the pool window (inclusive) and that
// signer is whitelisted.
func (c *Controller) Authorize(p *pool.Record, signer string, now time.Time) error {
	if !p.ActiveAt(now) {
		return fmt.Errorf("%w: %s is active %s to %s", ErrPoolNotActive, p.ID,
			p.StartTime.Format(time.RFC3339), p.EndTime.Format(time.RFC3339))
	}
	if !p.Whitelisted(signer) {
		return fmt.Errorf("%w: %s", ErrWalletNotWhitelisted, signer)
	}
	return nil
}

// AuthorizeOwner checks that requester created the pool.
func (c *Controller) AuthorizeOwner(p *pool.Record, requester string) error {
	if requester != p.CreatorAddress {
		return fmt.Errorf("%w: %s", ErrNotPoolOwner, p.ID)
	}
	return nil
}
