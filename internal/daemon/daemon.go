package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Refresher requests a reconciliation. *engine.Engine implements it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Service is a component whose lifetime the daemon owns, such as the
// dashboard server.
type Service interface {
	Start() error
	Stop() error
}

// Config holds configuration for the daemon.
type Config struct {
	// RefreshInterval is how often to reconcile unprompted. Zero disables
	// periodic refresh.
	RefreshInterval time.Duration

	// DebounceInterval is how long the ledger file must be quiet before a
	// change triggers a reconciliation.
	DebounceInterval time.Duration

	// WatchPath is the embedded ledger file to watch. Empty disables file
	// watching.
	WatchPath string

	// Services are started before the first refresh and stopped on shutdown.
	Services []Service

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:  0,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon keeps a projection fresh while the process runs.
type Daemon struct {
	refresher Refresher
	config    *Config

	watcher   *FileWatcher
	changedAt time.Time
	changeMu  sync.Mutex

	refreshes atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New creates a daemon with default configuration.
func New(r Refresher) (*Daemon, error) {
	return NewWithConfig(r, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(r Refresher, config *Config) (*Daemon, error) {
	if r == nil {
		return nil, fmt.Errorf("refresher cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	d := &Daemon{
		refresher: r,
		config:    config,
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	if config.WatchPath != "" {
		fw, err := NewFileWatcher()
		if err != nil {
			return nil, err
		}
		d.watcher = fw
	}

	return d, nil
}

// Start runs the daemon.
//
// It starts the configured services, begins watching the ledger file and
// runs the refresh ticker. It blocks until ctx is cancelled or Stop is
// called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	for i, svc := range d.config.Services {
		if err := svc.Start(); err != nil {
			for _, started := range d.config.Services[:i] {
				_ = started.Stop()
			}
			return fmt.Errorf("failed to start service: %w", err)
		}
	}

	if d.watcher != nil {
		if err := d.watcher.Start(d.config.WatchPath); err != nil {
			_ = d.Stop()
			return fmt.Errorf("failed to watch ledger: %w", err)
		}
		d.config.Logger.Printf("Watching: %s", d.config.WatchPath)

		d.wg.Add(2)
		go d.watchFileEvents()
		go d.processChanges()
	}

	if d.config.RefreshInterval > 0 {
		d.config.Logger.Printf("Refreshing every %v", d.config.RefreshInterval)
		d.wg.Add(1)
		go d.refreshPeriodically()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. It is safe to call more than once.
func (d *Daemon) Stop() error {
	var firstErr error
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")

		d.cancel()

		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				d.config.Logger.Printf("Error closing watcher: %v", err)
			}
		}

		d.wg.Wait()

		for i := len(d.config.Services) - 1; i >= 0; i-- {
			if err := d.config.Services[i].Stop(); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		d.config.Logger.Println("Daemon stopped")
	})
	return firstErr
}

// Refreshes returns how many reconciliations the daemon has requested.
func (d *Daemon) Refreshes() uint64 {
	return d.refreshes.Load()
}

func (d *Daemon) refresh(reason string) {
	d.refreshes.Add(1)
	if err := d.refresher.Refresh(d.ctx); err != nil && d.ctx.Err() == nil {
		d.config.Logger.Printf("Refresh (%s) failed: %v", reason, err)
	}
}

// watchFileEvents records ledger changes for the debounce loop.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.config.Logger.Printf("File event: %s %s", event.Op, event.Path)
			d.queueChange()

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) queueChange() {
	d.changeMu.Lock()
	defer d.changeMu.Unlock()
	d.changedAt = time.Now()
}

// processChanges refreshes once the ledger file has been quiet for the
// debounce interval.
func (d *Daemon) processChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if d.takeSettledChange() {
				d.refresh("ledger changed")
			}
		}
	}
}

func (d *Daemon) takeSettledChange() bool {
	d.changeMu.Lock()
	defer d.changeMu.Unlock()

	if d.changedAt.IsZero() || time.Since(d.changedAt) < d.config.DebounceInterval {
		return false
	}
	d.changedAt = time.Time{}
	return true
}

// refreshPeriodically reconciles on every tick.
func (d *Daemon) refreshPeriodically() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.refresh("interval")
		}
	}
}
