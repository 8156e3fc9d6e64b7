package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nightcore/internal/admission"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/cookies"
	"nightcore/internal/logging"
	"nightcore/internal/ratelimit"
	"nightcore/internal/sweeper"
	"nightcore/internal/testsupport"
)

type harness struct {
	cfg       *config.Config
	daemon    *Daemon
	extractor *testsupport.FakeExtractor
	filter    *testsupport.FakeFilter
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	logger := logging.NewNop()

	downloads := filepath.Join(testsupport.BaseDir(cfg), "downloads")
	if err := os.MkdirAll(downloads, 0o755); err != nil {
		t.Fatalf("mkdir downloads: %v", err)
	}
	extractor := &testsupport.FakeExtractor{Dir: downloads, Title: "Test Song"}
	filter := &testsupport.FakeFilter{Dir: cfg.Paths.TempDir}
	store := artifact.NewStore(cfg.Paths.TempDir)

	gate, err := admission.New(extractor, filter, admission.WithRetainer(store), admission.WithLogger(logger))
	if err != nil {
		t.Fatalf("admission.New: %v", err)
	}
	sw, err := sweeper.New(cfg.Paths.TempDir, cfg.SweepInterval(), cfg.SweepExpiry(), sweeper.WithLogger(logger))
	if err != nil {
		t.Fatalf("sweeper.New: %v", err)
	}
	comp := Components{
		Gate:    gate,
		Sweeper: sw,
		Store:   store,
		Cookies: cookies.New(cfg.Cookies.Path, cfg.Cookies.FallbackPaths, int64(cfg.Cookies.MaxBytes), logger),
	}
	if cfg.RateLimit.Enabled {
		comp.Limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateWindow())
	}

	d, err := New(cfg, comp, logger, WithVersion("test"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &harness{cfg: cfg, daemon: d, extractor: extractor, filter: filter}
}

func TestNewRequiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, Components{}, nil); err == nil {
		t.Fatal("expected error for missing components")
	}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.daemon.Addr() == "" {
		t.Fatal("expected listener address after start")
	}

	status := h.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Version != "test" || status.StartedAt == "" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.LockFilePath != filepath.Join(h.cfg.Paths.LogDir, "nightcore.lock") {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// Second start should fail
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	time.Sleep(50 * time.Millisecond)
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	other, err := New(h.cfg, h.daemon.comp, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock contention error")
	}

	h.daemon.Stop()
	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected start after release, got %v", err)
	}
	other.Stop()
}

func TestStartFailsOnBadBind(t *testing.T) {
	h := newHarness(t)
	h.cfg.Paths.APIBind = "127.0.0.1:-1"
	d, err := New(h.cfg, h.daemon.comp, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected listen error")
	}
	// Lock must be released after a failed start.
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("expected lock to be free, got %v", err)
	}
	h.daemon.Stop()
}

func TestSweeperRunsWhileStarted(t *testing.T) {
	h := newHarness(t, testsupport.WithSweeper(1, 60))
	stale := filepath.Join(h.cfg.Paths.TempDir, "nightcore_1_abcd.flac")
	testsupport.WriteAgedFile(t, stale, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.daemon.Status(ctx).Sweeper.Lifetime.Deleted == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected sweeper to delete the stale artifact")
}
