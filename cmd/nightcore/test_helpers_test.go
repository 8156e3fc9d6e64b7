package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightcore/internal/admission"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/cookies"
	"nightcore/internal/daemon"
	"nightcore/internal/logging"
	"nightcore/internal/sweeper"
	"nightcore/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	extractor  *testsupport.FakeExtractor
	filter     *testsupport.FakeFilter
	configPath string
	baseDir    string
}

// setupCLITestEnv runs a real daemon with fake tools on a loopback port and
// writes a config file pointing the CLI at it.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	clearNightcoreEnv(t)

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	logger := logging.NewNop()

	downloads := filepath.Join(base, "downloads")
	if err := os.MkdirAll(downloads, 0o755); err != nil {
		t.Fatalf("mkdir downloads: %v", err)
	}
	extractor := &testsupport.FakeExtractor{Dir: downloads, Title: "CLI Song"}
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
	d, err := daemon.New(cfg, daemon.Components{
		Gate:    gate,
		Sweeper: sw,
		Store:   store,
		Cookies: cookies.New(cfg.Cookies.Path, cfg.Cookies.FallbackPaths, int64(cfg.Cookies.MaxBytes), logger),
	}, logger, daemon.WithVersion("cli-test"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	cfg.Paths.APIBind = d.Addr()
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		extractor:  extractor,
		filter:     filter,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := config.Encode(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := config.WriteConfig(path, content); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// clearNightcoreEnv unsets the variables that override config values for the
// duration of the test.
func clearNightcoreEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "NIGHTCORE_TEMP_DIR", "NIGHTCORE_API_TOKEN"} {
		old, ok := os.LookupEnv(key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
		if ok {
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", substr, output)
	}
}
