package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"nightcore/internal/config"
)

type scriptedPrompter struct {
	inputs   []string
	confirms []bool
}

func (p *scriptedPrompter) Input(message string, defaultValue string) (string, error) {
	if len(p.inputs) == 0 {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no scripted input for %q", message)
	}
	next := p.inputs[0]
	p.inputs = p.inputs[1:]
	return next, nil
}

func (p *scriptedPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if len(p.confirms) == 0 {
		return defaultValue, nil
	}
	next := p.confirms[0]
	p.confirms = p.confirms[1:]
	return next, nil
}

func usePrompter(t *testing.T, p Prompter) {
	t.Helper()
	prev := DefaultPrompter
	DefaultPrompter = p
	t.Cleanup(func() { DefaultPrompter = prev })
}

func TestConfigInitAndValidate(t *testing.T) {
	clearNightcoreEnv(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse to overwrite without --overwrite")
	}

	cfg, _, exists, err := config.Load(target)
	if err != nil || !exists {
		t.Fatalf("sample config should load: exists=%v err=%v", exists, err)
	}
	// Point the sample at the test sandbox before validating so no home
	// directories get created.
	base := filepath.Dir(target)
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Cookies.Path = filepath.Join(base, "cookies.txt")
	writeTestConfig(t, target, cfg)

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigInitInteractive(t *testing.T) {
	clearNightcoreEnv(t)
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")
	tempDir := filepath.Join(base, "audio")
	usePrompter(t, &scriptedPrompter{
		inputs:   []string{tempDir, "0.0.0.0:9000", "s3cret", filepath.Join(base, "cookies.txt"), "300"},
		confirms: []bool{false},
	})

	out, _, err := runCLI(t, []string{"config", "init", "--interactive", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init --interactive: %v", err)
	}
	requireContains(t, out, "Wrote configuration")

	cfg, _, _, err := config.Load(target)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Paths.TempDir != tempDir || cfg.Paths.APIBind != "0.0.0.0:9000" || cfg.Paths.APIToken != "s3cret" {
		t.Fatalf("unexpected paths: %+v", cfg.Paths)
	}
	if cfg.Sweeper.ExpirySeconds != 300 || cfg.RateLimit.Enabled {
		t.Fatalf("unexpected sweeper/rate limit: %+v %+v", cfg.Sweeper, cfg.RateLimit)
	}
}

func TestConfigInitInteractiveKeepsExisting(t *testing.T) {
	clearNightcoreEnv(t)
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# mine\n"), 0o644); err != nil {
		t.Fatalf("write existing: %v", err)
	}
	usePrompter(t, &scriptedPrompter{confirms: []bool{false}})

	out, _, err := runCLI(t, []string{"config", "init", "-i", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Keeping existing configuration")
	data, _ := os.ReadFile(target)
	if string(data) != "# mine\n" {
		t.Fatalf("existing config was modified: %q", data)
	}
}

func TestPromptConfigRejectsBadExpiry(t *testing.T) {
	_, err := promptConfig(&scriptedPrompter{inputs: []string{"/tmp/x", "127.0.0.1:8000", "", "/tmp/c", "soon"}})
	if err == nil {
		t.Fatal("expected non-numeric expiry to fail")
	}
}
