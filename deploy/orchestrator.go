// Package deploy runs sponsored uploads of static-site bundles.
//
// An upload moves through received, authenticated, authorized, reserved,
// unpacked, validated, published and reconciled, and always ends cleaned up.
// Pool-tier uploads are authorized against the pool and paid from its
// dedicated wallet under a ledger reservation; community-tier uploads are
// paid from a random community wallet.
package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/sponsor-go/archive"
	"github.com/bitfsorg/sponsor-go/config"
	"github.com/bitfsorg/sponsor-go/fault"
	"github.com/bitfsorg/sponsor-go/ledger"
	"github.com/bitfsorg/sponsor-go/metrics"
	"github.com/bitfsorg/sponsor-go/network"
	"github.com/bitfsorg/sponsor-go/pool"
	"github.com/bitfsorg/sponsor-go/wallet"
)

var log = logging.Logger("deploy")

// Tag names attached to every published file.
const (
	TagAppName     = "App-Name"
	TagAnchor      = "anchor"
	TagContentType = "Content-Type"
	TagPoolType    = "Pool-Type"
	TagEventName   = "Event-Name"
)

const (
	DefaultAppName = config.DefaultAppName

	// DefaultWincPerMiB is 0.1 credit per MiB.
	DefaultWincPerMiB uint64 = config.DefaultWincPerMiB
)

// Authenticator verifies uploaders and checks pool access.
type Authenticator interface {
	Authenticate(contentHash, signature, publicKey, claimedAddress string) (string, error)
	Authorize(p *pool.Record, signer string, now time.Time) error
}

// PoolReader looks up pools.
type PoolReader interface {
	Get(ctx context.Context, id string) (*pool.Record, error)
}

// UsageLedger holds and settles pool spend.
type UsageLedger interface {
	Reserve(ctx context.Context, poolID, wallet string, estimate uint64) (*ledger.Reservation, error)
	Commit(ctx context.Context, res *ledger.Reservation, actual uint64) (*pool.Record, error)
	Release(ctx context.Context, res *ledger.Reservation) (*pool.Record, error)
}

// WalletSource supplies paying wallets.
type WalletSource interface {
	LoadDedicated(ctx context.Context, ref string) (*wallet.Key, error)
	PickCommunity(ctx context.Context) (*wallet.Key, error)
}

// Config holds the upload policy.
type Config struct {
	AppName string
	// WorkDir is where per-request work areas are created. Empty means
	// the system temp directory.
	WorkDir           string
	MaxTotalSize      int64
	MaxUnpackedSize   int64
	MaxEntries        int
	AllowedExtensions []string
	WincPerMiB        uint64
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = DefaultAppName
	}
	if c.MaxTotalSize <= 0 {
		c.MaxTotalSize = config.DefaultMaxTotalSize
	}
	if c.MaxUnpackedSize <= 0 {
		c.MaxUnpackedSize = 4 * c.MaxTotalSize
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = archive.DefaultMaxEntries
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = config.DefaultAllowedExtensions
	}
	exts := make([]string, len(c.AllowedExtensions))
	for i, e := range c.AllowedExtensions {
		exts[i] = strings.ToLower(e)
	}
	c.AllowedExtensions = exts
	if c.WincPerMiB == 0 {
		c.WincPerMiB = DefaultWincPerMiB
	}
	return c
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Access    Authenticator
	Pools     PoolReader
	Ledger    UsageLedger
	Wallets   WalletSource
	Publisher network.Publisher
}

// Orchestrator runs uploads.
type Orchestrator struct {
	cfg       Config
	deps      Dependencies
	rate      RateEstimator
	estimator Estimator
	extractor func(src string, limits archive.Limits) (archive.Extractor, error)
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEstimator replaces the flat-rate cost estimate.
func WithEstimator(e Estimator) Option {
	return func(o *Orchestrator) { o.estimator = e }
}

// WithExtractor uses ex for every archive instead of sniffing the format.
func WithExtractor(ex archive.Extractor) Option {
	return func(o *Orchestrator) {
		o.extractor = func(string, archive.Limits) (archive.Extractor, error) { return ex, nil }
	}
}

// WithMetrics records upload outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now for authorization and tags.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator.
func New(cfg Config, deps Dependencies, opts ...Option) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		rate:      RateEstimator{WincPerMiB: cfg.WincPerMiB},
		extractor: archive.ForFile,
		now:       time.Now,
	}
	o.estimator = o.rate
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the state of one upload.
type run struct {
	id       string
	req      Request
	tier     Tier
	state    State
	manifest []ManifestEntry
	size     int64

	signer  string
	pool    *pool.Record
	res     *ledger.Reservation
	payer   *wallet.Key
	files   []PublishedFile
	spent   uint64
	settled *pool.Record
}

func (r *run) to(s State) {
	log.Debugw("upload state", "upload", r.id, "from", r.state, "to", s)
	r.state = s
}

// Handle runs one upload to completion. The uploaded archive and the work
// area are removed before Handle returns, on every path. A failure after
// some files were published is a *PublishError.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (result *Result, err error) {
	r := &run{id: uuid.NewString(), req: req, tier: TierCommunity, state: StateReceived}
	started := o.now()
	cleanup := NewCleanup(req.ArchivePath)

	defer func() {
		if r.res != nil {
			// Failure path: the reservation still holds the estimate.
			res := r.res
			if serr := o.settle(ctx, r); serr != nil {
				log.Errorw("ledger reconciliation failed", "upload", r.id, "reservation", res.ID, "pool", res.PoolID, "winc", r.spent, "err", serr)
			}
		}
		if err != nil {
			log.Warnw("upload failed", "upload", r.id, "state", r.state, "code", fault.CodeOf(err), "err", err)
			r.to(StateFailed)
		}
		if cerr := cleanup.Run(); cerr != nil {
			var merr *multierror.Error
			n := 1
			if errors.As(cerr, &merr) {
				n = merr.Len()
			}
			o.metrics.ObserveCleanupFailure(n)
			log.Warnw("cleanup failed", "upload", r.id, "err", cerr)
		}
		r.to(StateCleanedUp)
		o.metrics.ObserveSpend(string(r.tier), r.spent)
		o.metrics.ObserveUpload(string(r.tier), outcome(err), o.now().Sub(started))
	}()

	if err := o.receive(r); err != nil {
		return nil, err
	}

	signer, err := o.deps.Access.Authenticate(req.ContentHash, req.Signature, req.PublicKey, req.ClaimedAddress)
	if err != nil {
		return nil, err
	}
	r.signer = signer
	r.to(StateAuthenticated)

	if err := o.selectPayer(ctx, r); err != nil {
		return nil, err
	}

	if o.cfg.WorkDir != "" {
		if err := os.MkdirAll(o.cfg.WorkDir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWorkArea, err)
		}
	}
	dir, err := os.MkdirTemp(o.cfg.WorkDir, "deploy-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkArea, err)
	}
	cleanup.Add(dir)

	ex, err := o.extractor(req.ArchivePath, archive.Limits{
		MaxTotalSize: o.cfg.MaxUnpackedSize,
		MaxEntries:   o.cfg.MaxEntries,
	})
	if err != nil {
		return nil, err
	}
	if _, err := ex.Extract(ctx, req.ArchivePath, dir); err != nil {
		return nil, err
	}
	r.to(StateUnpacked)

	if _, err := checkUnpacked(dir, r.manifest, o.cfg.MaxTotalSize); err != nil {
		return nil, err
	}
	r.to(StateValidated)

	if err := o.publish(ctx, r, dir); err != nil {
		return nil, &PublishError{Files: r.files, Spent: r.spent, Err: err}
	}
	r.to(StatePublished)

	if err := o.settle(ctx, r); err != nil {
		log.Errorw("ledger reconciliation failed", "upload", r.id, "files", len(r.files), "winc", r.spent, "err", err)
		return nil, fmt.Errorf("deploy: reconcile after publishing %d file(s): %w", len(r.files), err)
	}
	r.to(StateReconciled)

	result = o.result(ctx, r)
	log.Infow("upload published", "upload", r.id, "tier", r.tier, "signer", r.signer,
		"payer", r.payer.Address, "files", len(r.files), "winc", r.spent)
	return result, nil
}

// receive checks the request shape and binds the archive to the signed hash.
func (o *Orchestrator) receive(r *run) error {
	if strings.TrimSpace(r.req.ArchivePath) == "" {
		return ErrMissingArchive
	}
	tier, err := ParseTier(string(r.req.Tier))
	if err != nil {
		return err
	}
	r.tier = tier
	if tier == TierPool && strings.TrimSpace(r.req.PoolID) == "" {
		return ErrMissingPoolID
	}
	if r.manifest, err = checkManifest(r.req.Manifest, o.cfg.AllowedExtensions); err != nil {
		return err
	}

	f, err := os.Open(r.req.ArchivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArchive, r.req.ArchivePath)
		}
		return fmt.Errorf("%w: %w", ErrWorkArea, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkArea, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, strings.TrimSpace(r.req.ContentHash)) {
		return fmt.Errorf("%w: archive is %s", ErrHashMismatch, got)
	}
	r.size = n
	return nil
}

// selectPayer authorizes and reserves for pool-tier uploads, then picks the
// wallet that pays.
func (o *Orchestrator) selectPayer(ctx context.Context, r *run) error {
	if r.tier == TierCommunity {
		payer, err := o.deps.Wallets.PickCommunity(ctx)
		if err != nil {
			return err
		}
		r.payer = payer
		return nil
	}

	p, err := o.deps.Pools.Get(ctx, r.req.PoolID)
	if err != nil {
		return err
	}
	if err := o.deps.Access.Authorize(p, r.signer, o.now()); err != nil {
		return err
	}
	r.pool = p
	r.to(StateAuthorized)

	res, err := o.deps.Ledger.Reserve(ctx, p.ID, r.signer, o.estimator.Estimate(r.size))
	if err != nil {
		return err
	}
	r.res = res
	r.to(StateReserved)

	payer, err := o.deps.Wallets.LoadDedicated(ctx, p.WalletPath)
	if err != nil {
		return err
	}
	r.payer = payer
	return nil
}

// publish sends each manifest file in order and stops at the first failure.
func (o *Orchestrator) publish(ctx context.Context, r *run, dir string) error {
	for _, e := range r.manifest {
		p := filepath.Join(dir, filepath.FromSlash(e.Path))
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWorkArea, err)
		}
		fi, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWorkArea, err)
		}
		sum := sha256.Sum256(data)

		contentType := e.ContentType
		if contentType == "" {
			contentType = contentTypeFor(e.Path, data)
		}

		receipt, err := o.deps.Publisher.Publish(ctx, r.payer, data, o.tags(r, contentType))
		if err != nil {
			log.Warnw("publish failed", "upload", r.id, "file", e.Path, "published", len(r.files), "err", err)
			return fmt.Errorf("%s: %w", e.Path, err)
		}

		r.spent = addSat(r.spent, receipt.Cost)
		r.files = append(r.files, PublishedFile{
			Path:         e.Path,
			TxID:         receipt.TxID,
			ContentHash:  hex.EncodeToString(sum[:]),
			Size:         int64(len(data)),
			Cost:         receipt.Cost,
			LastModified: fi.ModTime().UTC(),
		})
		o.metrics.ObservePublished(len(data))
		log.Debugw("file published", "upload", r.id, "file", e.Path, "tx", receipt.TxID, "winc", receipt.Cost)
	}
	return nil
}

func (o *Orchestrator) tags(r *run, contentType string) []network.Tag {
	tags := []network.Tag{
		{Name: TagAppName, Value: o.cfg.AppName},
		{Name: TagAnchor, Value: o.now().UTC().Format(time.RFC3339)},
		{Name: TagContentType, Value: contentType},
		{Name: TagPoolType, Value: string(r.tier)},
	}
	if r.tier == TierPool && r.pool != nil {
		tags = append(tags, network.Tag{Name: TagEventName, Value: r.pool.Name})
	}
	return tags
}

// settle commits the actual spend, or releases the reservation when nothing
// was spent. It runs on a context detached from the request so a client
// that went away cannot leave the estimate counted.
func (o *Orchestrator) settle(ctx context.Context, r *run) error {
	if r.res == nil {
		return nil
	}
	res := r.res
	r.res = nil
	ctx = context.WithoutCancel(ctx)

	rec, err := o.reconcile(ctx, res, r.spent)
	if err != nil && fault.KindOf(err) == fault.KindStorage {
		// The ledger keeps the reservation open on storage errors.
		log.Warnw("ledger reconciliation failed, retrying", "upload", r.id, "reservation", res.ID, "err", err)
		rec, err = o.reconcile(ctx, res, r.spent)
	}
	if err != nil {
		return fmt.Errorf("reservation %s on pool %s (%d winc): %w", res.ID, res.PoolID, r.spent, err)
	}
	r.settled = rec
	return nil
}

func (o *Orchestrator) reconcile(ctx context.Context, res *ledger.Reservation, spent uint64) (*pool.Record, error) {
	if spent > 0 {
		return o.deps.Ledger.Commit(ctx, res, spent)
	}
	return o.deps.Ledger.Release(ctx, res)
}

func (o *Orchestrator) result(ctx context.Context, r *run) *Result {
	res := &Result{
		ID:    r.id,
		Tier:  r.tier,
		Files: r.files,
		Spent: r.spent,
	}
	var poolName string
	if r.pool != nil {
		poolName = r.pool.Name
		res.PoolName = poolName
	}
	res.Sponsor = SponsorLine(r.tier, poolName)

	if bal, err := o.deps.Publisher.GetBalance(ctx, r.payer.Address); err != nil {
		log.Warnw("payer balance unavailable", "upload", r.id, "payer", r.payer.Address, "err", err)
	} else {
		res.RemainingBalance = bal.Available
		res.EquivalentFileSize = o.rate.BytesFor(bal.Available)
	}

	if r.settled != nil {
		res.Usage = r.settled.UsageOf(r.signer)
		res.RemainingAllowance = r.settled.Remaining(r.signer)
	}
	return res
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var perr *PublishError
	if errors.As(err, &perr) && len(perr.Files) > 0 {
		return metrics.OutcomePartial
	}
	return metrics.OutcomeFailure
}

func addSat(a, b uint64) uint64 {
	if b > math.MaxUint64-a {
		return math.MaxUint64
	}
	return a + b
}
