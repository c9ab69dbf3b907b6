// Package ledger enforces the per-wallet usage cap of a sponsorship pool.
//
// Spend is reserved before any network fee is paid and settled exactly once
// afterwards, either by Commit with the actual cost or by Release. All
// transitions for one pool are serialized; different pools proceed in
// parallel.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/puzpuzpuz/xsync/v2"

	"github.com/bitfsorg/sponsor-go/metrics"
	"github.com/bitfsorg/sponsor-go/pool"
)

var log = logging.Logger("ledger")

// UsageStore is the part of pool.Store the ledger writes through.
type UsageStore interface {
	MutateUsage(ctx context.Context, id string, fn func(rec *pool.Record) error) (*pool.Record, error)
}

// Reservation is an outstanding hold on a wallet's allowance.
type Reservation struct {
	ID        string
	PoolID    string
	Wallet    string
	Amount    uint64
	CreatedAt time.Time
}

// Ledger tracks reservations against a UsageStore.
type Ledger struct {
	pools   UsageStore
	locks   *xsync.MapOf[string, *sync.Mutex]
	open    *xsync.MapOf[string, *Reservation]
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records reservation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides time.Now for reservation stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns a ledger writing usage through pools.
func New(pools UsageStore, opts ...Option) *Ledger {
	l := &Ledger{
		pools: pools,
		locks: xsync.NewMapOf[*sync.Mutex](),
		open:  xsync.NewMapOf[*Reservation](),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lock(poolID string) func() {
	mu, _ := l.locks.LoadOrStore(poolID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// Reserve holds estimate winc of wallet's allowance in poolID. It fails with
// ErrUsageCapExceeded when usage plus estimate would pass the pool's cap, in
// which case usage is left untouched.
func (l *Ledger) Reserve(ctx context.Context, poolID, wallet string, estimate uint64) (*Reservation, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, ErrMissingWallet
	}

	unlock := l.lock(poolID)
	defer unlock()

	_, err := l.pools.MutateUsage(ctx, poolID, func(rec *pool.Record) error {
		used := rec.UsageOf(wallet)
		// used <= cap is a store invariant, so cap-used cannot wrap.
		if used > rec.UsageCap || estimate > rec.UsageCap-used {
			return fmt.Errorf("%w: %s has used %d of %d, needs %d",
				ErrUsageCapExceeded, wallet, used, rec.UsageCap, estimate)
		}
		rec.Usage[wallet] = used + estimate
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUsageCapExceeded) {
			l.metrics.ObserveReservation(metrics.OutcomeRejected)
		}
		return nil, err
	}

	res := &Reservation{
		ID:        uuid.New().String(),
		PoolID:    poolID,
		Wallet:    wallet,
		Amount:    estimate,
		CreatedAt: l.now().UTC(),
	}
	l.open.Store(res.ID, res)
	l.metrics.ObserveReservation(metrics.OutcomeReserved)
	log.Debugw("reserved", "pool", poolID, "wallet", wallet, "winc", estimate, "reservation", res.ID)
	return res, nil
}

// Commit replaces the reserved estimate with the actual spend. Actual may
// exceed the estimate; recorded usage is then clamped at the cap and the
// overage logged, since the fee has already been paid.
func (l *Ledger) Commit(ctx context.Context, res *Reservation, actual uint64) (*pool.Record, error) {
	rec, err := l.settle(ctx, res, actual)
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveReservation(metrics.OutcomeCommitted)
	log.Debugw("committed", "pool", res.PoolID, "wallet", res.Wallet, "estimate", res.Amount, "actual", actual)
	return rec, nil
}

// Release returns the whole estimate to the wallet's allowance.
func (l *Ledger) Release(ctx context.Context, res *Reservation) (*pool.Record, error) {
	rec, err := l.settle(ctx, res, 0)
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveReservation(metrics.OutcomeReleased)
	log.Debugw("released", "pool", res.PoolID, "wallet", res.Wallet, "winc", res.Amount)
	return rec, nil
}

// Pending reports how many reservations are neither committed nor released.
func (l *Ledger) Pending() int {
	return l.open.Size()
}

func (l *Ledger) settle(ctx context.Context, res *Reservation, actual uint64) (*pool.Record, error) {
	if res == nil || res.ID == "" {
		return nil, ErrInvalidReservation
	}
	held, ok := l.open.LoadAndDelete(res.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReservationSettled, res.ID)
	}

	unlock := l.lock(held.PoolID)
	defer unlock()

	rec, err := l.pools.MutateUsage(ctx, held.PoolID, func(rec *pool.Record) error {
		used := rec.UsageOf(held.Wallet)
		base := used - min(used, held.Amount)
		next := base + actual
		if actual > rec.UsageCap-min(base, rec.UsageCap) {
			log.Warnw("spend above usage cap, clamping",
				"pool", held.PoolID, "wallet", held.Wallet, "cap", rec.UsageCap,
				"recorded", base, "actual", actual)
			next = rec.UsageCap
		}
		rec.Usage[held.Wallet] = next
		return nil
	})
	if err != nil {
		if !errors.Is(err, pool.ErrPoolNotFound) {
			// Keep it open so the caller can retry the settlement.
			l.open.Store(held.ID, held)
		}
		return nil, err
	}
	return rec, nil
}
