package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"nightcore/internal/admission"
	"nightcore/internal/api"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/cookies"
	"nightcore/internal/logging"
	"nightcore/internal/preflight"
	"nightcore/internal/ratelimit"
	"nightcore/internal/sweeper"
)

// Components are the long-lived services the daemon serves over HTTP.
// Limiter may be nil when rate limiting is disabled.
type Components struct {
	Gate    *admission.Gate
	Sweeper *sweeper.Sweeper
	Store   *artifact.Store
	Cookies *cookies.Jar
	Limiter *ratelimit.Limiter
}

// Daemon owns the HTTP surface and the sweeper goroutine and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	comp    Components
	version string
	now     func() time.Time

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithVersion sets the version string reported by /api/status.
func WithVersion(version string) Option {
	return func(d *Daemon) {
		if version != "" {
			d.version = version
		}
	}
}

// WithClock overrides the uptime clock.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, comp Components, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || comp.Gate == nil || comp.Sweeper == nil || comp.Store == nil || comp.Cookies == nil {
		return nil, errors.New("daemon requires config, gate, sweeper, artifact store, and cookie jar")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "nightcore.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		comp:     comp,
		version:  "dev",
		now:      time.Now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the sweeper, and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another nightcore daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = d.now()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.comp.Sweeper.Run(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("nightcore daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.String("temp_dir", d.comp.Store.Dir()),
	)
	return nil
}

// Stop stops the sweeper and the HTTP server and releases the daemon lock.
// A job already holding the slot keeps running until its tools return.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("nightcore daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the address the HTTP server is listening on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Handler exposes the router so tests and embedders can serve it directly.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      d.version,
		LockFilePath: d.lockPath,
		Gate:         api.FromGateStatus(d.comp.Gate.Status()),
		Sweeper:      api.FromSweeper(d.comp.Sweeper),
		TempDir:      tempDirStatus(d.comp.Store.Dir(), d.now()),
		Cookies:      api.FromCookieInfo(d.comp.Cookies.Info()),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(ctx, d.cfg)),
		Preflight:    api.FromPreflight(preflight.RunAll(ctx, d.cfg)),
	}
	if status.Running {
		status.StartedAt = api.FormatTime(d.startedAt)
		status.UptimeSeconds = int64(d.now().Sub(d.startedAt) / time.Second)
	}
	if d.comp.Limiter != nil {
		status.RateClients = d.comp.Limiter.Clients()
	}
	return status
}

func tempDirStatus(dir string, now time.Time) api.TempDirStatus {
	status := api.TempDirStatus{Path: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return status
	}
	var oldest time.Time
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		status.Files++
		status.Bytes += info.Size()
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}
	}
	if !oldest.IsZero() {
		status.OldestAge = now.Sub(oldest).Round(time.Second).String()
	}
	if free, err := preflight.FreeSpaceMiB(dir); err == nil {
		status.FreeMiB = free
	}
	return status
}
