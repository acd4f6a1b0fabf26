package reconnect

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realmesh/go-realmesh/peers"
)

// Config configures the reconnection driver.
type Config struct {
	// Base is the wait before the first retry.
	Base time.Duration `mapstructure:"base"`
	// Max caps the wait between retries.
	Max time.Duration `mapstructure:"max"`
	// Interval is how often the driver scans the registry for due peers.
	Interval time.Duration `mapstructure:"interval"`
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `mapstructure:"dial-timeout"`
}

// DefaultConfig returns the default reconnection config.
func DefaultConfig() Config {
	return Config{
		Base:        5 * time.Second,
		Max:         5 * time.Minute,
		Interval:    time.Second,
		DialTimeout: 10 * time.Second,
	}
}

// Delay computes the backoff for the given attempt under this config. It is
// the retry policy handed to the peer registry.
func (c Config) Delay(attempt uint32) time.Duration {
	return Delay(c.Base, c.Max, attempt)
}

// Connector dials a peer at one of its known addresses.
type Connector interface {
	Connect(ctx context.Context, info peers.Info) error
}

// Opt configures a Driver.
type Opt func(*Driver)

// WithClock replaces the wall clock, for testing.
func WithClock(clock clockwork.Clock) Opt {
	return func(d *Driver) {
		d.clock = clock
	}
}

// Driver periodically scans the peer registry and dials every peer whose
// retry time has come. Attempt accounting lives in the registry; the driver
// only moves connections.
type Driver struct {
	logger    *zap.Logger
	cfg       Config
	registry  *peers.Registry
	connector Connector
	clock     clockwork.Clock

	eg     errgroup.Group
	cancel context.CancelFunc
}

// New creates a reconnection driver.
func New(
	logger *zap.Logger,
	cfg Config,
	registry *peers.Registry,
	connector Connector,
	opts ...Opt,
) *Driver {
	d := &Driver{
		logger:    logger,
		cfg:       cfg,
		registry:  registry,
		connector: connector,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the scan loop.
func (d *Driver) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.eg.Go(func() error {
		d.run(ctx)
		return nil
	})
}

// Stop terminates the scan loop and waits for in-flight dials.
func (d *Driver) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.eg.Wait()
}

func (d *Driver) run(ctx context.Context) {
	ticker := d.clock.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			d.scan(ctx)
		}
	}
}

func (d *Driver) scan(ctx context.Context) {
	for _, info := range d.registry.Due(d.clock.Now()) {
		if ctx.Err() != nil {
			return
		}
		d.attempt(ctx, info)
	}
}

func (d *Driver) attempt(ctx context.Context, info peers.Info) {
	d.registry.SetStatus(info.ID, peers.Reconnecting)
	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()
	if err := d.connector.Connect(dialCtx, info); err != nil {
		attempt := d.registry.RecordAttempt(info.ID)
		d.logger.Debug("reconnect attempt failed",
			zap.String("peer", info.ID.ShortString()),
			zap.Uint32("attempt", attempt),
			zap.Error(err),
		)
		return
	}
	d.registry.RecordSuccess(info.ID)
	d.logger.Info("peer reconnected", zap.String("peer", info.ID.ShortString()))
}
