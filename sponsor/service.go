// Package sponsor wires the sponsorship core into one service.
//
// Service is the surface an HTTP layer or the sponsord CLI calls. It owns
// the record store, the wallet provisioner, the pool store, the usage ledger
// and the upload orchestrator, all built from a config.Config.
package sponsor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/bitfsorg/sponsor-go/access"
	"github.com/bitfsorg/sponsor-go/config"
	"github.com/bitfsorg/sponsor-go/deploy"
	"github.com/bitfsorg/sponsor-go/ledger"
	"github.com/bitfsorg/sponsor-go/metrics"
	"github.com/bitfsorg/sponsor-go/network"
	"github.com/bitfsorg/sponsor-go/pool"
	"github.com/bitfsorg/sponsor-go/storage"
	"github.com/bitfsorg/sponsor-go/wallet"
)

var log = logging.Logger("sponsor")

// Files inside the data directory.
const (
	BoltFile   = "sponsor.db"
	RecordsDir = "records"
	LockFile   = "sponsor.lock"
)

// Service is the sponsorship core.
type Service struct {
	cfg       config.Config
	network   *wallet.NetworkConfig
	store     storage.RecordStore
	ownsStore bool
	lock      *os.File

	wallets   *wallet.Provisioner
	pools     *pool.Store
	access    *access.Controller
	ledger    *ledger.Ledger
	deploy    *deploy.Orchestrator
	publisher network.Publisher
	metrics   *metrics.Metrics
	rate      deploy.RateEstimator
}

type options struct {
	store     storage.RecordStore
	publisher network.Publisher
	kdf       *wallet.KDFParams
	now       func() time.Time
}

// Option customizes Open.
type Option func(*options)

// WithStore uses store instead of opening the configured backend. The
// caller keeps ownership; Close does not close it.
func WithStore(store storage.RecordStore) Option {
	return func(o *options) { o.store = store }
}

// WithPublisher uses p instead of a gateway client built from the config.
func WithPublisher(p network.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithKDFParams overrides the key-sealing cost.
func WithKDFParams(p wallet.KDFParams) Option {
	return func(o *options) { o.kdf = &p }
}

// WithClock overrides time.Now across the service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open validates cfg and builds a Service. With the default stores the data
// directory is locked to this process until Close.
func Open(cfg config.Config, opts ...Option) (*Service, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	netCfg, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		network: netCfg,
		metrics: metrics.New(),
		rate:    deploy.RateEstimator{WincPerMiB: cfg.WincPerMiB},
	}

	if o.store != nil {
		s.store = o.store
	} else if err := s.openStore(); err != nil {
		return nil, err
	}

	var provOpts []wallet.ProvisionerOption
	if o.kdf != nil {
		provOpts = append(provOpts, wallet.WithKDFParams(*o.kdf))
	}
	s.wallets, err = wallet.NewProvisioner(s.store, cfg.KeyPassphrase, netCfg, provOpts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.publisher = o.publisher
	if s.publisher == nil {
		gw, err := network.ResolveConfig(&network.GatewayConfig{URL: cfg.GatewayURL, Token: cfg.GatewayToken}, nil, cfg.Network)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.publisher = network.NewGatewayClient(*gw)
	}

	s.pools = pool.NewStore(s.store, s.wallets,
		pool.WithMaxPerCreator(cfg.MaxPoolsPerCreator),
		pool.WithClock(o.now))
	s.access = access.NewController(access.BSVVerifier{Network: netCfg})
	s.ledger = ledger.New(s.pools, ledger.WithMetrics(s.metrics), ledger.WithClock(o.now))
	s.deploy = deploy.New(deploy.Config{
		AppName:           cfg.AppName,
		WorkDir:           cfg.WorkDir,
		MaxTotalSize:      cfg.MaxTotalSize,
		AllowedExtensions: cfg.AllowedExtensions,
		WincPerMiB:        cfg.WincPerMiB,
	}, deploy.Dependencies{
		Access:    s.access,
		Pools:     s.pools,
		Ledger:    s.ledger,
		Wallets:   s.wallets,
		Publisher: s.publisher,
	}, deploy.WithMetrics(s.metrics), deploy.WithClock(o.now))

	log.Infow("sponsor service ready", "network", netCfg.Name, "backend", cfg.StoreBackend, "datadir", cfg.DataDir)
	return s, nil
}

func (s *Service) openStore() error {
	if err := os.MkdirAll(s.cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("%w: create data dir: %w", storage.ErrIOFailure, err)
	}
	lock, err := tryLock(filepath.Join(s.cfg.DataDir, LockFile))
	if err != nil {
		return err
	}

	var store storage.RecordStore
	switch s.cfg.StoreBackend {
	case config.BackendFile:
		store, err = storage.NewFileStore(filepath.Join(s.cfg.DataDir, RecordsDir))
	default:
		store, err = storage.OpenBoltStore(filepath.Join(s.cfg.DataDir, BoltFile),
			pool.Bucket, wallet.BucketPoolWallets, wallet.BucketCommunityWallets)
	}
	if err != nil {
		releaseLock(lock)
		return err
	}
	s.store, s.ownsStore, s.lock = store, true, lock
	return nil
}

// Close releases the store and the data directory lock.
func (s *Service) Close() error {
	var err error
	if s.ownsStore && s.store != nil {
		err = s.store.Close()
	}
	releaseLock(s.lock)
	s.lock = nil
	return err
}

// Metrics returns the service collectors.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Network returns the configured network.
func (s *Service) Network() *wallet.NetworkConfig { return s.network }

// CreatePool creates a pool with a fresh dedicated wallet.
func (s *Service) CreatePool(ctx context.Context, spec pool.Spec) (*pool.Record, error) {
	return s.pools.Create(ctx, spec)
}

// GetPool returns one pool.
func (s *Service) GetPool(ctx context.Context, id string) (*pool.Record, error) {
	return s.pools.Get(ctx, id)
}

// UpdatePool changes a pool's window or whitelist. A non-empty requester
// must be the pool's creator.
func (s *Service) UpdatePool(ctx context.Context, id string, patch pool.Patch, requester string) (*pool.Record, error) {
	if err := s.checkOwner(ctx, id, requester); err != nil {
		return nil, err
	}
	return s.pools.Update(ctx, id, patch)
}

// DeletePool removes a pool and destroys its dedicated key. A non-empty
// requester must be the pool's creator.
func (s *Service) DeletePool(ctx context.Context, id, requester string) error {
	if err := s.checkOwner(ctx, id, requester); err != nil {
		return err
	}
	return s.pools.Delete(ctx, id)
}

func (s *Service) checkOwner(ctx context.Context, id, requester string) error {
	if requester == "" {
		return nil
	}
	p, err := s.pools.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.access.AuthorizeOwner(p, requester)
}

// ListPools returns pools matching f.
func (s *Service) ListPools(ctx context.Context, f pool.Filter) ([]*pool.Record, error) {
	return s.pools.List(ctx, f)
}

// PoolBalance is the funding left in a pool's dedicated wallet.
type PoolBalance struct {
	PoolID  string  `json:"poolId"`
	Address string  `json:"address"`
	Winc    uint64  `json:"winc,string"`
	Credits float64 `json:"credits"`
	// EquivalentFileSize is how many bytes the balance still pays for.
	EquivalentFileSize uint64 `json:"equivalentFileSize"`
}

// GetBalance queries the network for the balance of pool id's wallet.
func (s *Service) GetBalance(ctx context.Context, id string) (*PoolBalance, error) {
	p, err := s.pools.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	bal, err := s.publisher.GetBalance(ctx, p.WalletAddress)
	if err != nil {
		return nil, err
	}
	return &PoolBalance{
		PoolID:             p.ID,
		Address:            p.WalletAddress,
		Winc:               bal.Available,
		Credits:            network.Credits(bal.Available),
		EquivalentFileSize: s.rate.BytesFor(bal.Available),
	}, nil
}

// HandleUpload runs one sponsored upload.
func (s *Service) HandleUpload(ctx context.Context, req deploy.Request) (*deploy.Result, error) {
	return s.deploy.Handle(ctx, req)
}

// EnrollCommunityWallet adds a funded key to the community set and returns
// its address. Enrolling the same key twice is a no-op.
func (s *Service) EnrollCommunityWallet(ctx context.Context, material string) (string, error) {
	return s.wallets.EnrollCommunity(ctx, material)
}

// CommunityWallets lists the enrolled community addresses.
func (s *Service) CommunityWallets(ctx context.Context) ([]string, error) {
	return s.wallets.CommunityAddresses(ctx)
}
