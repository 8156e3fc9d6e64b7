//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"nightcore/internal/admission"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/cookies"
	"nightcore/internal/daemon"
	"nightcore/internal/jobs"
	"nightcore/internal/logging"
	"nightcore/internal/sweeper"
	"nightcore/internal/testsupport"
)

// generateContext holds per-scenario state.
type generateContext struct {
	baseDir   string
	server    *httptest.Server
	daemon    *daemon.Daemon
	extractor *testsupport.FakeExtractor
	filter    *testsupport.FakeFilter
	status    int
	outcome   jobs.Outcome
}

// SharedGenerateContext is reset before each scenario via the Before hook.
var SharedGenerateContext *generateContext

func InitializeGenerateScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedGenerateContext = &generateContext{}
		return c, nil
	})
	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		g := SharedGenerateContext
		if g.server != nil {
			g.server.Close()
		}
		if g.daemon != nil {
			_ = g.daemon.Close()
		}
		if g.baseDir != "" {
			_ = os.RemoveAll(g.baseDir)
		}
		return c, nil
	})

	ctx.Step(`^a running nightcore service with fake tools$`, aRunningServiceWithFakeTools)
	ctx.Step(`^I submit the job:$`, iSubmitTheJob)
	ctx.Step(`^the response status is (\d+)$`, theResponseStatusIs)
	ctx.Step(`^the filter graph is "([^"]*)"$`, theFilterGraphIs)
	ctx.Step(`^the outcome succeeds with a file ending in "([^"]*)"$`, theOutcomeSucceedsWithExtension)
	ctx.Step(`^the rendered file can be downloaded$`, theRenderedFileCanBeDownloaded)
	ctx.Step(`^the sarcasm mentions "([^"]*)"$`, theSarcasmMentions)
	ctx.Step(`^the outcome fails with an error containing "([^"]*)"$`, theOutcomeFailsWith)
	ctx.Step(`^no external tool was invoked$`, noExternalToolWasInvoked)
}

func aRunningServiceWithFakeTools() error {
	g := SharedGenerateContext
	base, err := os.MkdirTemp("", "nightcore-features-")
	if err != nil {
		return err
	}
	g.baseDir = base

	cfgVal := config.Default()
	cfgVal.Paths.TempDir = filepath.Join(base, "temp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Cookies.Path = filepath.Join(base, "cookies.txt")
	cfgVal.Cookies.FallbackPaths = nil
	cfgVal.RateLimit.Enabled = false
	cfg := &cfgVal
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	downloads := filepath.Join(base, "downloads")
	if err := os.MkdirAll(downloads, 0o755); err != nil {
		return err
	}

	logger := logging.NewNop()
	g.extractor = &testsupport.FakeExtractor{Dir: downloads, Title: "Feature Song"}
	g.filter = &testsupport.FakeFilter{Dir: cfg.Paths.TempDir}
	store := artifact.NewStore(cfg.Paths.TempDir)

	gate, err := admission.New(g.extractor, g.filter, admission.WithRetainer(store), admission.WithLogger(logger))
	if err != nil {
		return err
	}
	sw, err := sweeper.New(cfg.Paths.TempDir, cfg.SweepInterval(), cfg.SweepExpiry(), sweeper.WithLogger(logger))
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, daemon.Components{
		Gate:    gate,
		Sweeper: sw,
		Store:   store,
		Cookies: cookies.New(cfg.Cookies.Path, nil, 0, logger),
	}, logger)
	if err != nil {
		return err
	}
	g.daemon = d
	g.server = httptest.NewServer(d.Handler())
	return nil
}

func iSubmitTheJob(table *godog.Table) error {
	g := SharedGenerateContext
	body := make(map[string]any, len(table.Rows))
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected key/value rows, got %d cells", len(row.Cells))
		}
		key, raw := row.Cells[0].Value, row.Cells[1].Value
		switch key {
		case "url", "mode", "format":
			body[key] = raw
		default:
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			body[key] = n
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(g.server.URL+"/generate", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	g.status = resp.StatusCode
	g.outcome = jobs.Outcome{}
	return json.NewDecoder(resp.Body).Decode(&g.outcome)
}

func theResponseStatusIs(want int) error {
	if got := SharedGenerateContext.status; got != want {
		return fmt.Errorf("status = %d, want %d", got, want)
	}
	return nil
}

func theFilterGraphIs(want string) error {
	graphs := SharedGenerateContext.filter.Graphs()
	if len(graphs) != 1 {
		return fmt.Errorf("expected exactly one filter run, got %d", len(graphs))
	}
	if graphs[0] != want {
		return fmt.Errorf("graph = %q, want %q", graphs[0], want)
	}
	return nil
}

func theOutcomeSucceedsWithExtension(ext string) error {
	o := SharedGenerateContext.outcome
	if !o.Success {
		return fmt.Errorf("expected success, got error %q", o.Error)
	}
	if o.Filename == "" || !strings.HasSuffix(o.Filename, ext) {
		return fmt.Errorf("filename %q does not end in %s", o.Filename, ext)
	}
	return nil
}

func theRenderedFileCanBeDownloaded() error {
	g := SharedGenerateContext
	resp, err := http.Get(g.server.URL + "/download/" + g.outcome.Filename)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status = %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("downloaded file is empty")
	}
	return nil
}

func theSarcasmMentions(fragment string) error {
	if s := SharedGenerateContext.outcome.Sarcasm; !strings.Contains(s, fragment) {
		return fmt.Errorf("sarcasm %q does not mention %q", s, fragment)
	}
	return nil
}

func theOutcomeFailsWith(fragment string) error {
	o := SharedGenerateContext.outcome
	if o.Success {
		return fmt.Errorf("expected failure, got success with %q", o.Filename)
	}
	if !strings.Contains(o.Error, fragment) {
		return fmt.Errorf("error %q does not contain %q", o.Error, fragment)
	}
	return nil
}

func noExternalToolWasInvoked() error {
	g := SharedGenerateContext
	if n := g.extractor.Calls(); n != 0 {
		return fmt.Errorf("extractor ran %d times", n)
	}
	if n := g.filter.Calls(); n != 0 {
		return fmt.Errorf("filter ran %d times", n)
	}
	return nil
}
