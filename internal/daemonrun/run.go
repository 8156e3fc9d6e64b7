package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"nightcore/internal/admission"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/cookies"
	"nightcore/internal/daemon"
	"nightcore/internal/logging"
	"nightcore/internal/preflight"
	"nightcore/internal/ratelimit"
	"nightcore/internal/services/ffmpeg"
	"nightcore/internal/services/ytdlp"
	"nightcore/internal/sweeper"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the nightcore daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, logPath, err := logging.NewFromConfig(&logCfg, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(CurrentLogPath(cfg), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update nightcore.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "nightcore-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	comp, err := NewComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("assemble components: %w", err)
	}

	d, err := daemon.New(cfg, comp, logger, daemon.WithVersion(opts.Version))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other nightcore daemon holds the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("nightcore daemon shutting down")
	return nil
}

// NewComponents builds the gate, tools, sweeper, store, cookie jar, and rate
// limiter described by cfg. The returned gate owns the process-wide job slot.
func NewComponents(cfg *config.Config, logger *slog.Logger) (daemon.Components, error) {
	if cfg == nil {
		return daemon.Components{}, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	jar := cookies.New(cfg.Cookies.Path, cfg.Cookies.FallbackPaths, int64(cfg.Cookies.MaxBytes), logger)
	store := artifact.NewStore(cfg.Paths.TempDir)

	extractor, err := ytdlp.New(cfg.Paths.TempDir,
		ytdlp.WithBinary(cfg.Tools.YtDlpBinary),
		ytdlp.WithTimeout(cfg.ToolTimeout()),
		ytdlp.WithExtractorArgs(cfg.Tools.ExtractorArgs),
		ytdlp.WithCookies(jar),
		ytdlp.WithLogger(logger),
	)
	if err != nil {
		return daemon.Components{}, err
	}
	filter, err := ffmpeg.New(cfg.Paths.TempDir,
		ffmpeg.WithBinary(cfg.Tools.FFmpegBinary),
		ffmpeg.WithTimeout(cfg.ToolTimeout()),
		ffmpeg.WithLogger(logger),
	)
	if err != nil {
		return daemon.Components{}, err
	}

	gate, err := admission.New(extractor, filter,
		admission.WithRetainer(store),
		admission.WithLogger(logger),
	)
	if err != nil {
		return daemon.Components{}, err
	}

	sw, err := sweeper.New(cfg.Paths.TempDir, cfg.SweepInterval(), cfg.SweepExpiry(), sweeper.WithLogger(logger))
	if err != nil {
		return daemon.Components{}, err
	}

	comp := daemon.Components{
		Gate:    gate,
		Sweeper: sw,
		Store:   store,
		Cookies: jar,
	}
	if cfg.RateLimit.Enabled {
		comp.Limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateWindow(),
			ratelimit.WithForwardedFor(cfg.RateLimit.TrustForwardedFor))
	}
	return comp, nil
}

// PIDPath is where a running daemon records its process id.
func PIDPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "nightcore.pid")
}

// CurrentLogPath returns the link that always points at the running daemon's
// log file.
func CurrentLogPath(cfg *config.Config) string {
	if cfg == nil || cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "nightcore.log")
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ytdlp_available", binaryAvailable(cfg.Tools.YtDlpBinary)),
		logging.String("ytdlp_binary", cfg.Tools.YtDlpBinary),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Tools.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Tools.FFmpegBinary),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
