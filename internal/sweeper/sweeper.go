package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nightcore/internal/logging"
)

// Result summarizes one sweep over the temp directory.
type Result struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
	Kept    int `json:"kept"`
}

// Sweeper deletes regular files in a directory once their mtime falls behind
// the expiry window. It shares the directory with running jobs without any
// coordination; a file removed mid-job surfaces as that job's failure.
type Sweeper struct {
	dir      string
	interval time.Duration
	expiry   time.Duration
	logger   *slog.Logger
	now      func() time.Time
	remove   func(string) error

	mu       sync.Mutex
	lastRun  time.Time
	last     Result
	lifetime Result
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the sweeper logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a sweeper for dir.
func New(dir string, interval, expiry time.Duration, opts ...Option) (*Sweeper, error) {
	if dir == "" {
		return nil, errors.New("sweeper: directory required")
	}
	if interval <= 0 {
		return nil, errors.New("sweeper: interval must be positive")
	}
	if expiry <= 0 {
		return nil, errors.New("sweeper: expiry must be positive")
	}
	s := &Sweeper{
		dir:      dir,
		interval: interval,
		expiry:   expiry,
		logger:   logging.NewNop(),
		now:      time.Now,
		remove:   os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "sweeper")
	return s, nil
}

// Run sweeps every interval until ctx ends. The first sweep happens one
// interval after start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		logging.String(logging.FieldEventType, "sweeper_started"),
		logging.String("dir", s.dir),
		logging.Duration("interval", s.interval),
		logging.Duration("expiry", s.expiry),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped", logging.String(logging.FieldEventType, "sweeper_stopped"))
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs a single pass. Per-file failures are logged and counted; they
// never stop the pass.
func (s *Sweeper) Sweep() Result {
	now := s.now()
	cutoff := now.Add(-s.expiry)
	var result Result

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.WarnWithContext(s.logger, "sweep listing failed; will retry next tick", "sweep_list_failed",
			logging.String("dir", s.dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that temp_dir exists and is readable"),
			logging.String(logging.FieldImpact, "expired artifacts stay on disk until the next tick"),
		)
		s.record(now, result)
		return result
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		result.Scanned++
		path := filepath.Join(s.dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			result.Failed++
			s.logger.Warn("sweep stat failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "sweep_stat_failed"),
			)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			result.Kept++
			continue
		}

		if err := s.remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			result.Failed++
			logging.WarnWithContext(s.logger, "sweep remove failed; file remains", "sweep_remove_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "expired artifact remains on disk"),
			)
			continue
		}
		result.Deleted++
		s.logger.Info("artifact expired",
			logging.String("name", entry.Name()),
			logging.Duration("age", now.Sub(info.ModTime()).Round(time.Second)),
			logging.String(logging.FieldEventType, "artifact_swept"),
		)
	}

	s.record(now, result)
	return result
}

// Last returns the time and result of the most recent sweep plus lifetime
// totals.
func (s *Sweeper) Last() (time.Time, Result, Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.last, s.lifetime
}

// Interval returns the tick period.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Expiry returns the age threshold.
func (s *Sweeper) Expiry() time.Duration { return s.expiry }

func (s *Sweeper) record(at time.Time, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = at
	s.last = result
	s.lifetime.Scanned += result.Scanned
	s.lifetime.Deleted += result.Deleted
	s.lifetime.Failed += result.Failed
	s.lifetime.Kept += result.Kept
}
