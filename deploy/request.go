package deploy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tier selects who pays for a deploy.
type Tier string

const (
	// TierPool is paid by a sponsorship pool's dedicated wallet.
	TierPool Tier = "event"
	// TierCommunity is paid by a randomly chosen community wallet.
	TierCommunity Tier = "community"
)

// ParseTier maps a client-supplied selector to a Tier. Empty means community.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case "", TierCommunity:
		return TierCommunity, nil
	case TierPool, "pool":
		return TierPool, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

// ManifestEntry declares one file of the bundle to publish.
type ManifestEntry struct {
	Path        string `json:"relativePath"`
	ContentType string `json:"contentType,omitempty"`
}

// ParseManifest decodes a JSON array of manifest entries.
func ParseManifest(data []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return entries, nil
}

// Request is one upload.
type Request struct {
	// ContentHash is the hex SHA-256 of the archive, as signed by the client.
	ContentHash    string
	Signature      string
	PublicKey      string
	ClaimedAddress string

	Tier   Tier
	PoolID string

	// ArchivePath is the uploaded artifact. It is removed when the
	// request finishes, whatever the outcome.
	ArchivePath string
	Manifest    []ManifestEntry
}

// PublishedFile is one file accepted by the network.
type PublishedFile struct {
	Path         string    `json:"relativePath"`
	TxID         string    `json:"txId"`
	ContentHash  string    `json:"hash"`
	Size         int64     `json:"size"`
	Cost         uint64    `json:"winc,string"`
	LastModified time.Time `json:"lastModified"`
}

// Result describes a successful upload.
type Result struct {
	ID    string          `json:"id"`
	Tier  Tier            `json:"poolType"`
	Files []PublishedFile `json:"uploadedFiles"`
	Spent uint64          `json:"spent,string"`

	// Payer balance after the upload, in winc, and the number of bytes it
	// would still pay for at the configured rate.
	RemainingBalance   uint64 `json:"remainingBalance,string"`
	EquivalentFileSize uint64 `json:"equivalentFileSize"`

	Sponsor  string `json:"sponsor"`
	PoolName string `json:"poolName,omitempty"`

	// Pool tier only; zero for the community tier.
	Usage              uint64 `json:"usage,string"`
	RemainingAllowance uint64 `json:"remainingAllowance,string"`
}

// SponsorLine returns the attribution shown to the uploader.
func SponsorLine(tier Tier, poolName string) string {
	if tier == TierPool {
		return "You have been sponsored by " + poolName
	}
	return "Sponsored by the community pool"
}
