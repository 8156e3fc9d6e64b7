package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"nightcore/internal/logging"
	"nightcore/internal/services"
)

var commandContext = exec.CommandContext

// DefaultExtractorArgs steers YouTube towards clients that rarely trigger bot
// checks.
const DefaultExtractorArgs = "youtube:player_client=ios,android_creator;player_skip=webpage,configs"

// CookieSource hands out the cookie jar for one download.
type CookieSource interface {
	Lease(ctx context.Context) (path string, release func(), err error)
}

// Option configures the client.
type Option func(*Client)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *Client) {
		if binary = strings.TrimSpace(binary); binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single download.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithExtractorArgs overrides --extractor-args.
func WithExtractorArgs(args string) Option {
	return func(c *Client) {
		c.extractorArgs = strings.TrimSpace(args)
	}
}

// WithCookies supplies a cookie jar.
func WithCookies(source CookieSource) Option {
	return func(c *Client) {
		c.cookies = source
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps the yt-dlp command-line downloader.
type Client struct {
	binary        string
	outputDir     string
	timeout       time.Duration
	extractorArgs string
	cookies       CookieSource
	logger        *slog.Logger
}

// New constructs a client writing downloads into outputDir.
func New(outputDir string, opts ...Option) (*Client, error) {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return nil, errors.New("ytdlp: output directory required")
	}
	c := &Client{
		binary:        "yt-dlp",
		outputDir:     outputDir,
		timeout:       300 * time.Second,
		extractorArgs: DefaultExtractorArgs,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ytdlp")
	return c, nil
}

// Extract downloads the best audio for url as FLAC and returns the file path
// and its display name.
func (c *Client) Extract(ctx context.Context, url string) (string, string, error) {
	if strings.TrimSpace(url) == "" {
		return "", "", services.Wrap(services.ErrValidation, "ytdlp", "extract", "url required", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	cookiePath := ""
	if c.cookies != nil {
		path, release, err := c.cookies.Lease(ctx)
		if err != nil {
			return "", "", services.Wrap(services.ErrTransient, "ytdlp", "cookies", "Could not lock cookie jar", err)
		}
		defer release()
		cookiePath = path
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.buildArgs(url, cookiePath)
	logger.Info("yt-dlp download started",
		logging.String(logging.FieldEventType, "download_started"),
		logging.String("url", url),
		logging.Bool("cookies", cookiePath != ""),
	)

	var stdout, stderr bytes.Buffer
	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", "", services.Wrap(services.ErrTimeout, "ytdlp", "download", "Download timed out", runCtx.Err())
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", "", services.Wrap(services.ErrConfiguration, "ytdlp", "download", "yt-dlp binary not found", err)
		}
		return "", "", services.Wrap(services.ErrExternalTool, "ytdlp", "download",
			"Download failed: "+tail(stderr.String()), err)
	}

	path := lastLine(stdout.String())
	if path == "" {
		return "", "", services.Wrap(services.ErrNotFound, "ytdlp", "download", "Downloaded file not found.", nil)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.outputDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", services.Wrap(services.ErrNotFound, "ytdlp", "download", "Downloaded file not found.", err)
	}

	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	logger.Info("yt-dlp download finished",
		logging.String(logging.FieldEventType, "download_finished"),
		logging.String("path", path),
	)
	return path, title, nil
}

func (c *Client) buildArgs(url, cookiePath string) []string {
	args := []string{"-x", "--audio-format", "flac", "--audio-quality", "0"}
	if c.extractorArgs != "" {
		args = append(args, "--extractor-args", c.extractorArgs)
	}
	if cookiePath != "" {
		args = append(args, "--cookies", cookiePath)
	}
	args = append(args,
		url,
		"-o", filepath.Join(c.outputDir, "%(title)s.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-mtime",
		"--no-warnings",
	)
	return args
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tail keeps the end of stderr, where yt-dlp prints the ERROR line.
func tail(output string) string {
	output = strings.TrimSpace(output)
	const limit = 500
	if len(output) <= limit {
		return output
	}
	return "..." + output[len(output)-limit:]
}
