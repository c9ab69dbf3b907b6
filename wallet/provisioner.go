package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/sponsor-go/storage"
)

var log = logging.Logger("wallet")

// Record store buckets owned by the provisioner.
const (
	BucketPoolWallets      = "pool_wallets"
	BucketCommunityWallets = "community_wallets"
)

// keyRecord is the persisted form of one sealed key.
type keyRecord struct {
	Address   string    `json:"address"`
	Sealed    []byte    `json:"sealed"`
	KDF       KDFParams `json:"kdf"`
	CreatedAt time.Time `json:"created_at"`
}

// Provisioner creates, loads and selects funding keys.
type Provisioner struct {
	store      storage.RecordStore
	passphrase string
	network    *NetworkConfig
	kdf        KDFParams
	now        func() time.Time
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithKDFParams overrides the Argon2id cost used for new key records.
func WithKDFParams(p KDFParams) ProvisionerOption {
	return func(pr *Provisioner) { pr.kdf = p }
}

// NewProvisioner returns a provisioner sealing keys with passphrase.
func NewProvisioner(store storage.RecordStore, passphrase string, net *NetworkConfig, opts ...ProvisionerOption) (*Provisioner, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if net == nil {
		net = &MainNet
	}
	p := &Provisioner{
		store:      store,
		passphrase: passphrase,
		network:    net,
		kdf:        DefaultKDFParams(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.kdf.valid() {
		return nil, ErrInvalidKDFParams
	}
	return p, nil
}

// Network returns the network addresses are derived for.
func (p *Provisioner) Network() *NetworkConfig { return p.network }

// DedicatedRef returns the wallet reference stored on a pool record.
func DedicatedRef(poolID string) string {
	return BucketPoolWallets + "/" + poolID
}

func parseDedicatedRef(ref string) (string, error) {
	id, ok := strings.CutPrefix(ref, BucketPoolWallets+"/")
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidWalletRef, ref)
	}
	return id, nil
}

// ProvisionDedicated generates a fresh key for poolID and persists it.
// It returns the key and the reference to store on the pool record.
func (p *Provisioner) ProvisionDedicated(ctx context.Context, poolID string) (*Key, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	key, err := GenerateKey(p.network)
	if err != nil {
		return nil, "", err
	}
	data, err := p.seal(key)
	if err != nil {
		return nil, "", err
	}

	err = p.store.Update(BucketPoolWallets, poolID, func(old []byte) ([]byte, error) {
		if old != nil {
			return nil, fmt.Errorf("%w: pool %s", ErrWalletExists, poolID)
		}
		return data, nil
	})
	if err != nil {
		return nil, "", err
	}

	log.Infow("provisioned dedicated wallet", "pool", poolID, "address", key.Address)
	return key, DedicatedRef(poolID), nil
}

// LoadDedicated opens the key referenced by a pool record.
func (p *Provisioner) LoadDedicated(ctx context.Context, ref string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := parseDedicatedRef(ref)
	if err != nil {
		return nil, err
	}
	return p.load(BucketPoolWallets, id)
}

// DestroyDedicated deletes the key referenced by a pool record.
func (p *Provisioner) DestroyDedicated(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := parseDedicatedRef(ref)
	if err != nil {
		return err
	}
	if err := p.store.Delete(BucketPoolWallets, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: pool %s", ErrWalletNotFound, id)
		}
		return err
	}
	log.Infow("destroyed dedicated wallet", "pool", id)
	return nil
}

// PickCommunity returns a uniformly random enrolled community key.
func (p *Provisioner) PickCommunity(ctx context.Context) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addrs, err := p.store.Keys(BucketCommunityWallets)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoCommunityWalletsAvailable
	}
	addr := addrs[rand.IntN(len(addrs))]
	log.Debugw("picked community wallet", "address", addr, "of", len(addrs))
	return p.load(BucketCommunityWallets, addr)
}

// EnrollCommunity validates key material and stores it under its address.
// Enrolling the same key twice is a no-op.
func (p *Provisioner) EnrollCommunity(ctx context.Context, material string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := ParseKeyMaterial(material, p.network)
	if err != nil {
		return "", err
	}

	enrolled := false
	err = p.store.Update(BucketCommunityWallets, key.Address, func(old []byte) ([]byte, error) {
		if old != nil {
			return old, nil
		}
		enrolled = true
		return p.seal(key)
	})
	if err != nil {
		return "", err
	}
	if enrolled {
		log.Infow("enrolled community wallet", "address", key.Address)
	}
	return key.Address, nil
}

// CommunityAddresses lists the enrolled community wallet addresses.
func (p *Provisioner) CommunityAddresses(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.store.Keys(BucketCommunityWallets)
}

func (p *Provisioner) seal(key *Key) ([]byte, error) {
	sealed, err := SealKey(key.raw(), p.passphrase, p.kdf)
	if err != nil {
		return nil, err
	}
	return json.Marshal(keyRecord{
		Address:   key.Address,
		Sealed:    sealed,
		KDF:       p.kdf,
		CreatedAt: p.now().UTC(),
	})
}

func (p *Provisioner) load(bucket, id string) (*Key, error) {
	data, err := p.store.Get(bucket, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrWalletNotFound, bucket, id)
		}
		return nil, err
	}

	var rec keyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeyRecord, err)
	}
	raw, err := OpenKey(rec.Sealed, p.passphrase, rec.KDF)
	if err != nil {
		return nil, err
	}
	key, err := keyFromRaw(raw, p.network)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeyRecord, err)
	}
	if key.Address != rec.Address {
		return nil, fmt.Errorf("%w: address %s does not match key", ErrCorruptKeyRecord, rec.Address)
	}
	return key, nil
}
