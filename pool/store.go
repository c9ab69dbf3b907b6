package pool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/samber/lo"

	"github.com/bitfsorg/sponsor-go/storage"
	"github.com/bitfsorg/sponsor-go/wallet"
)

var log = logging.Logger("pool")

// Persisted layout: the whole collection lives in one record.
const (
	Bucket        = "pools"
	CollectionKey = "pools"
)

const idLen = 16

// DefaultMaxPerCreator is how many pools one creator may own at once.
const DefaultMaxPerCreator = 3

// WalletProvisioner is the part of wallet.Provisioner the store needs.
type WalletProvisioner interface {
	ProvisionDedicated(ctx context.Context, poolID string) (*wallet.Key, string, error)
	DestroyDedicated(ctx context.Context, ref string) error
}

// Store is the durable pool collection.
type Store struct {
	records       storage.RecordStore
	wallets       WalletProvisioner
	maxPerCreator int
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxPerCreator sets the per-creator pool limit.
func WithMaxPerCreator(n int) Option {
	return func(s *Store) { s.maxPerCreator = n }
}

// WithClock overrides time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store persisting to records and provisioning pool
// wallets through wallets.
func NewStore(records storage.RecordStore, wallets WalletProvisioner, opts ...Option) *Store {
	s := &Store{
		records:       records,
		wallets:       wallets,
		maxPerCreator: DefaultMaxPerCreator,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type collection map[string]*Record

func decode(data []byte) (collection, error) {
	pools := collection{}
	if len(data) == 0 {
		return pools, nil
	}
	if err := json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCollection, err)
	}
	for id, r := range pools {
		if r == nil {
			delete(pools, id)
			continue
		}
		if r.Usage == nil {
			r.Usage = map[string]uint64{}
		}
	}
	return pools, nil
}

// load reads the collection. A missing record is an empty store.
func (s *Store) load() (collection, error) {
	data, err := s.records.Get(Bucket, CollectionKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return collection{}, nil
		}
		return nil, err
	}
	return decode(data)
}

// mutate applies fn to the collection inside one atomic store update.
func (s *Store) mutate(fn func(pools collection) error) error {
	return s.records.Update(Bucket, CollectionKey, func(old []byte) ([]byte, error) {
		pools, err := decode(old)
		if err != nil {
			return nil, err
		}
		if err := fn(pools); err != nil {
			return nil, err
		}
		return json.Marshal(pools)
	})
}

// List returns copies of the pools matching f, ordered by creation time.
func (s *Store) List(ctx context.Context, f Filter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pools, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(pools))
	for _, r := range pools {
		if f.match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns a copy of pool id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pools, err := s.load()
	if err != nil {
		return nil, err
	}
	r, ok := pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id)
	}
	return r.Clone(), nil
}

// Create validates spec, provisions a dedicated wallet and persists the pool.
func (s *Store) Create(ctx context.Context, spec Spec) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	// Fail fast before generating key material; re-checked under the write.
	pools, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(pools, spec.CreatorAddress); err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	key, ref, err := s.wallets.ProvisionDedicated(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:             id,
		Name:           spec.Name,
		CreatorAddress: spec.CreatorAddress,
		StartTime:      spec.StartTime,
		EndTime:        spec.EndTime,
		UsageCap:       spec.UsageCap,
		Whitelist:      spec.Whitelist,
		Usage:          map[string]uint64{},
		WalletPath:     ref,
		WalletAddress:  key.Address,
		CreatedAt:      s.now().UTC(),
	}

	err = s.mutate(func(pools collection) error {
		if err := s.checkLimit(pools, spec.CreatorAddress); err != nil {
			return err
		}
		pools[id] = rec
		return nil
	})
	if err != nil {
		// The pool never became visible; drop its key.
		if derr := s.wallets.DestroyDedicated(context.WithoutCancel(ctx), ref); derr != nil {
			log.Warnw("failed to destroy orphaned pool wallet", "pool", id, "err", derr)
		}
		return nil, err
	}

	log.Infow("pool created", "pool", id, "name", rec.Name, "creator", rec.CreatorAddress, "wallet", rec.WalletAddress)
	return rec.Clone(), nil
}

func (s *Store) checkLimit(pools collection, creator string) error {
	owned := lo.CountBy(lo.Values(pools), func(r *Record) bool {
		return r.CreatorAddress == creator
	})
	if owned >= s.maxPerCreator {
		return fmt.Errorf("%w: %s owns %d of %d", ErrPoolLimitExceeded, creator, owned, s.maxPerCreator)
	}
	return nil
}

// Update applies the non-nil fields of p and re-validates the time window.
func (s *Store) Update(ctx context.Context, id string, p Patch) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var whitelist []string
	if p.Whitelist != nil {
		var err error
		if whitelist, err = normalizeWhitelist(p.Whitelist); err != nil {
			return nil, err
		}
	}

	var updated *Record
	err := s.mutate(func(pools collection) error {
		r, ok := pools[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, id)
		}
		next := r.Clone()
		if p.StartTime != nil {
			next.StartTime = p.StartTime.UTC()
		}
		if p.EndTime != nil {
			next.EndTime = p.EndTime.UTC()
		}
		if whitelist != nil {
			next.Whitelist = whitelist
		}
		if !next.StartTime.Before(next.EndTime) {
			return ErrInvalidTimeRange
		}
		pools[id] = next
		updated = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infow("pool updated", "pool", id)
	return updated, nil
}

// Delete removes the pool and destroys its dedicated key.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var ref string
	err := s.mutate(func(pools collection) error {
		r, ok := pools[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, id)
		}
		ref = r.WalletPath
		delete(pools, id)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.wallets.DestroyDedicated(ctx, ref); err != nil {
		if !errors.Is(err, wallet.ErrWalletNotFound) {
			return fmt.Errorf("pool: %s removed but wallet not destroyed: %w", id, err)
		}
		log.Warnw("pool wallet already absent", "pool", id, "ref", ref)
	}
	log.Infow("pool deleted", "pool", id)
	return nil
}

// MutateUsage is the only path that changes a pool's usage map. fn runs
// under the store's write and may modify rec.Usage; other field changes
// are discarded. No entry may end above UsageCap.
func (s *Store) MutateUsage(ctx context.Context, id string, fn func(rec *Record) error) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated *Record
	err := s.mutate(func(pools collection) error {
		r, ok := pools[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPoolNotFound, id)
		}
		work := r.Clone()
		if err := fn(work); err != nil {
			return err
		}
		for addr, used := range work.Usage {
			if used > r.UsageCap {
				return fmt.Errorf("%w: %s at %d of %d", ErrUsageAboveCap, addr, used, r.UsageCap)
			}
			if used == 0 {
				delete(work.Usage, addr)
			}
		}
		r.Usage = work.Usage
		updated = r.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func newID() (string, error) {
	b := make([]byte, idLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pool: generate id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func normalizeSpec(spec Spec) (Spec, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.CreatorAddress = strings.TrimSpace(spec.CreatorAddress)

	switch {
	case spec.Name == "":
		return spec, fmt.Errorf("%w: name", ErrMissingField)
	case spec.CreatorAddress == "":
		return spec, fmt.Errorf("%w: creatorAddress", ErrMissingField)
	case spec.StartTime.IsZero():
		return spec, fmt.Errorf("%w: startTime", ErrMissingField)
	case spec.EndTime.IsZero():
		return spec, fmt.Errorf("%w: endTime", ErrMissingField)
	case spec.UsageCap == 0:
		return spec, fmt.Errorf("%w: usageCap", ErrMissingField)
	}
	if !wallet.ValidateAddress(spec.CreatorAddress) {
		return spec, fmt.Errorf("%w: %q", ErrInvalidAddress, spec.CreatorAddress)
	}
	spec.StartTime = spec.StartTime.UTC()
	spec.EndTime = spec.EndTime.UTC()
	if !spec.StartTime.Before(spec.EndTime) {
		return spec, ErrInvalidTimeRange
	}

	wl, err := normalizeWhitelist(spec.Whitelist)
	if err != nil {
		return spec, err
	}
	spec.Whitelist = wl
	return spec, nil
}

// normalizeWhitelist trims, de-duplicates and validates entries.
func normalizeWhitelist(in []string) ([]string, error) {
	wl := lo.Uniq(lo.Compact(lo.Map(in, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(wl) == 0 {
		return nil, fmt.Errorf("%w: whitelist", ErrMissingField)
	}
	if bad, ok := lo.Find(wl, func(a string) bool { return !wallet.ValidateAddress(a) }); ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, bad)
	}
	return wl, nil
}
