package ffmpeg

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

	"github.com/google/uuid"

	"nightcore/internal/artifact"
	"nightcore/internal/jobs"
	"nightcore/internal/logging"
	"nightcore/internal/services"
)

var commandContext = exec.CommandContext

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

// WithTimeout bounds a single render.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
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

// WithClock overrides time.Now for output naming.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client renders audio through an ffmpeg filter graph.
type Client struct {
	binary    string
	outputDir string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a client writing rendered files into outputDir.
func New(outputDir string, opts ...Option) (*Client, error) {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return nil, errors.New("ffmpeg: output directory required")
	}
	c := &Client{
		binary:    "ffmpeg",
		outputDir: outputDir,
		timeout:   300 * time.Second,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "ffmpeg")
	return c, nil
}

// Filter applies graph to inputPath and writes a nightcore_ artifact in the
// requested format, returning its path.
func (c *Client) Filter(ctx context.Context, inputPath, graph string, format jobs.Format) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "filter", "input path required", nil)
	}
	if strings.TrimSpace(graph) == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "filter", "filter graph required", nil)
	}
	codec, err := codecArgs(format)
	if err != nil {
		return "", err
	}
	logger := logging.WithContext(ctx, c.logger)

	jobID, _ := services.JobIDFromContext(ctx)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	outputPath := filepath.Join(c.outputDir, artifact.OutputName(c.now(), jobID, format.Extension()))

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append([]string{"-y", "-i", inputPath, "-filter:a", graph}, codec...)
	args = append(args, outputPath)
	logger.Info("ffmpeg render started",
		logging.String(logging.FieldEventType, "render_started"),
		logging.String("graph", graph),
		logging.String("output", filepath.Base(outputPath)),
	)

	var stderr bytes.Buffer
	cmd := commandContext(runCtx, c.binary, args...) //nolint:gosec
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		_ = os.Remove(outputPath)
		return "", services.Wrap(services.ErrTimeout, "ffmpeg", "render", "Processing timed out", runCtx.Err())
	}
	if runErr != nil {
		_ = os.Remove(outputPath)
		var execErr *exec.Error
		if errors.As(runErr, &execErr) {
			return "", services.Wrap(services.ErrConfiguration, "ffmpeg", "render", "ffmpeg binary not found", runErr)
		}
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "render", "FFmpeg failed: "+tail(stderr.String()), runErr)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", services.Wrap(services.ErrNotFound, "ffmpeg", "render", "Output file was not created.", err)
	}

	logger.Info("ffmpeg render finished",
		logging.String(logging.FieldEventType, "render_finished"),
		logging.String("output", filepath.Base(outputPath)),
	)
	return outputPath, nil
}

func codecArgs(format jobs.Format) ([]string, error) {
	switch format {
	case jobs.FormatMP3:
		return []string{"-c:a", "libmp3lame", "-q:a", "0"}, nil
	case jobs.FormatFLAC, "":
		return []string{"-c:a", "flac", "-compression_level", "8"}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "filter", "unsupported format "+string(format), nil)
	}
}

// tail keeps the end of stderr, where ffmpeg reports the failing filter.
func tail(output string) string {
	output = strings.TrimSpace(output)
	const limit = 500
	if len(output) <= limit {
		return output
	}
	return "..." + output[len(output)-limit:]
}
