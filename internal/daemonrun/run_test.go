package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"nightcore/internal/logging"
	"nightcore/internal/testsupport"
)

func TestNewComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	comp, err := NewComponents(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewComponents: %v", err)
	}
	if comp.Gate == nil || comp.Sweeper == nil || comp.Store == nil || comp.Cookies == nil {
		t.Fatalf("expected all components, got %+v", comp)
	}
	if comp.Limiter != nil {
		t.Fatal("expected no limiter when rate limiting is disabled")
	}
	if comp.Store.Dir() != cfg.Paths.TempDir {
		t.Fatalf("unexpected store dir %q", comp.Store.Dir())
	}
	if comp.Sweeper.Interval() != cfg.SweepInterval() || comp.Sweeper.Expiry() != cfg.SweepExpiry() {
		t.Fatal("sweeper timing does not follow config")
	}
	if comp.Cookies.Path() != cfg.Cookies.Path {
		t.Fatalf("unexpected cookie path %q", comp.Cookies.Path())
	}

	limited := testsupport.NewConfig(t, testsupport.WithRateLimit(2, 30))
	comp, err = NewComponents(limited, nil)
	if err != nil {
		t.Fatalf("NewComponents: %v", err)
	}
	if comp.Limiter == nil {
		t.Fatal("expected limiter when rate limiting is enabled")
	}
}

func TestNewComponentsRequiresConfig(t *testing.T) {
	if _, err := NewComponents(nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunWritesPIDAndStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "error", Version: "test"})
	}()

	pidPath := PIDPath(cfg)
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(pidPath)
		if err == nil && strings.TrimSpace(string(data)) == strconv.Itoa(os.Getpid()) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pid file never appeared: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	target, err := os.Readlink(filepath.Join(cfg.Paths.LogDir, "nightcore.log"))
	if err != nil {
		t.Fatalf("expected log pointer symlink: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(target), "nightcore-") {
		t.Fatalf("unexpected log pointer target %q", target)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestRunFailsWhenAnotherInstanceHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(cfg.Paths.LogDir, "nightcore.lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Run(ctx, cfg, Options{LogLevel: "error"}); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestEnsureCurrentLogPointerReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "nightcore-1.log")
	second := filepath.Join(dir, "nightcore-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	current := filepath.Join(dir, "nightcore.log")
	if err := ensureCurrentLogPointer(current, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(current, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	target, err := os.Readlink(current)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != second {
		t.Fatalf("expected pointer to %s, got %s", second, target)
	}
	if err := ensureCurrentLogPointer("", second); err != nil {
		t.Fatalf("empty pointer should be a no-op: %v", err)
	}
}
