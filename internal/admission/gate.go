package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"nightcore/internal/filtergraph"
	"nightcore/internal/jobs"
	"nightcore/internal/logging"
	"nightcore/internal/services"
)

// Extractor downloads the audio behind a URL into a local file.
type Extractor interface {
	Extract(ctx context.Context, url string) (path string, displayName string, err error)
}

// FilterEngine renders inputPath through graph into the requested format.
type FilterEngine interface {
	Filter(ctx context.Context, inputPath, graph string, format jobs.Format) (outputPath string, err error)
}

// Retainer keeps the downloaded source around as a downloadable artifact and
// returns its new path.
type Retainer interface {
	RetainOriginal(sourcePath, displayName, jobID string) (string, error)
}

// Hooks observe slot ownership. Both callbacks run while the slot is held.
type Hooks struct {
	OnAcquire func(jobID string, queued bool)
	OnRelease func(jobID string, outcome jobs.Outcome)
}

// Status is a point-in-time view of the gate.
type Status struct {
	Busy         bool      `json:"busy"`
	Waiting      int       `json:"waiting"`
	CurrentJobID string    `json:"current_job_id,omitempty"`
	Since        time.Time `json:"since,omitzero"`
	Completed    uint64    `json:"completed"`
	Failed       uint64    `json:"failed"`
	Rejected     uint64    `json:"rejected"`
}

// Option configures the gate.
type Option func(*Gate)

// WithLogger sets the gate logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRetainer keeps downloaded originals. Without one the source file is
// filtered in place and reported by its own name.
func WithRetainer(r Retainer) Option {
	return func(g *Gate) {
		g.retainer = r
	}
}

// WithHooks installs slot observers.
func WithHooks(h Hooks) Option {
	return func(g *Gate) {
		g.hooks = h
	}
}

// WithPicker makes flavor selection deterministic.
func WithPicker(p jobs.Picker) Option {
	return func(g *Gate) {
		if p != nil {
			g.pick = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gate) {
		if newID != nil {
			g.newID = newID
		}
	}
}

// Gate admits one job at a time. Callers that arrive while a job runs block
// until the slot frees up; there is no queue beyond the mutex wait.
type Gate struct {
	slot sync.Mutex

	extractor Extractor
	filter    FilterEngine
	retainer  Retainer
	hooks     Hooks
	logger    *slog.Logger
	pick      jobs.Picker
	now       func() time.Time
	newID     func() string

	mu        sync.Mutex
	current   string
	since     time.Time
	waiting   int
	completed uint64
	failed    uint64
	rejected  uint64
}

// New constructs a gate around the extractor and filter engine.
func New(extractor Extractor, filter FilterEngine, opts ...Option) (*Gate, error) {
	if extractor == nil {
		return nil, errors.New("admission: extractor required")
	}
	if filter == nil {
		return nil, errors.New("admission: filter engine required")
	}
	g := &Gate{
		extractor: extractor,
		filter:    filter,
		logger:    logging.NewNop(),
		pick:      jobs.RandomPicker,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "gate")
	return g, nil
}

// Submit validates req, waits for the slot, and runs the job to completion.
// It always returns exactly one outcome. The job runs on a context detached
// from ctx's cancellation so a disconnecting client cannot abort a running
// subprocess halfway.
func (g *Gate) Submit(ctx context.Context, req jobs.Request) jobs.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	normalized, err := jobs.Normalize(req)
	if err != nil {
		return g.reject(ctx, req, err)
	}

	jobID := g.newID()
	jobCtx := services.WithJobID(context.WithoutCancel(ctx), jobID)
	logger := logging.WithContext(jobCtx, g.logger)

	g.mu.Lock()
	g.waiting++
	g.mu.Unlock()

	queued := !g.slot.TryLock()
	if queued {
		logger.Info("job waiting for slot", logging.String(logging.FieldEventType, "job_queued"))
		g.slot.Lock()
	}
	defer g.slot.Unlock()

	g.mu.Lock()
	g.waiting--
	g.current = jobID
	g.since = g.now()
	g.mu.Unlock()

	logger.Info("job admitted",
		logging.String(logging.FieldEventType, "job_admitted"),
		logging.Bool("queued", queued),
		logging.String("mode", string(normalized.Mode)),
		logging.String("format", string(normalized.Format)),
	)
	if g.hooks.OnAcquire != nil {
		g.hooks.OnAcquire(jobID, queued)
	}

	started := g.now()
	outcome := g.run(jobCtx, logger, jobID, normalized, queued)

	if g.hooks.OnRelease != nil {
		g.hooks.OnRelease(jobID, outcome)
	}

	g.mu.Lock()
	g.current = ""
	g.since = time.Time{}
	if outcome.Success {
		g.completed++
	} else {
		g.failed++
	}
	g.mu.Unlock()

	logger.Info("job released",
		logging.String(logging.FieldEventType, "job_released"),
		logging.Bool("success", outcome.Success),
		logging.Duration("elapsed", g.now().Sub(started)),
	)
	return outcome
}

// Status reports the current slot owner and counters.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{
		Busy:         g.current != "",
		Waiting:      g.waiting,
		CurrentJobID: g.current,
		Since:        g.since,
		Completed:    g.completed,
		Failed:       g.failed,
		Rejected:     g.rejected,
	}
}

func (g *Gate) run(ctx context.Context, logger *slog.Logger, jobID string, req jobs.Request, queued bool) (outcome jobs.Outcome) {
	stage := jobs.StageExtract
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: unexpected failure during %s: %v", services.ErrTransient, stage, r)
			outcome = g.failure(logger, req, stage, err)
		}
	}()

	sourcePath, title, err := g.extractor.Extract(ctx, req.URL)
	if err != nil {
		return g.failure(logger, req, stage, err)
	}
	logger.Info("audio extracted",
		logging.String(logging.FieldEventType, "audio_extracted"),
		logging.String("path", sourcePath),
		logging.String("title", title),
	)

	inputPath := sourcePath
	if g.retainer != nil {
		stage = jobs.StageRetain
		retained, err := g.retainer.RetainOriginal(sourcePath, title, jobID)
		if err != nil {
			return g.failure(logger, req, stage, err)
		}
		inputPath = retained
	}

	stage = jobs.StageFilter
	graph := filtergraph.Build(req.FilterParams())
	logger.Debug("filter graph built", logging.String("graph", graph))
	outputPath, err := g.filter.Filter(ctx, inputPath, graph, req.Format)
	if err != nil {
		return g.failure(logger, req, stage, err)
	}

	sarcasm := jobs.SuccessFlavor(g.pick)
	if queued {
		sarcasm = jobs.QueuedPrefix + sarcasm
	}
	return jobs.Outcome{
		Success:          true,
		Filename:         filepath.Base(outputPath),
		OriginalFilename: filepath.Base(inputPath),
		Sarcasm:          withBetaWarning(req.Mode, sarcasm),
	}
}

func (g *Gate) failure(logger *slog.Logger, req jobs.Request, stage jobs.Stage, err error) jobs.Outcome {
	kind := services.Kind(err)
	logging.WarnWithContext(logger, "job failed", "job_failed",
		logging.String("stage", string(stage)),
		logging.String("kind", string(kind)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(stage, kind)),
		logging.String(logging.FieldImpact, "caller receives a failure outcome"),
	)
	sarcasm := jobs.ErrorFlavor(stage, kind, g.pick)
	return jobs.Failed(services.Message(err), withBetaWarning(req.Mode, sarcasm))
}

func (g *Gate) reject(ctx context.Context, req jobs.Request, err error) jobs.Outcome {
	g.mu.Lock()
	g.rejected++
	g.mu.Unlock()

	logging.WithContext(ctx, g.logger).Info("job rejected",
		logging.String(logging.FieldEventType, "job_rejected"),
		logging.String("url", req.URL),
		logging.Error(err),
	)
	message := services.Message(err)
	if errors.Is(err, jobs.ErrURLRequired) {
		message = jobs.ErrURLRequired.Error()
	}
	return jobs.Failed(message, jobs.ErrorFlavor(jobs.StageValidate, services.KindValidation, g.pick))
}

func withBetaWarning(mode filtergraph.Mode, sarcasm string) string {
	if mode != filtergraph.ModeVocalFree {
		return sarcasm
	}
	return sarcasm + " " + jobs.VocalFreeWarning
}

func hintFor(stage jobs.Stage, kind services.ErrorKind) string {
	switch {
	case kind == services.KindTimeout:
		return "raise tools.timeout_seconds or try a shorter source"
	case stage == jobs.StageExtract:
		return "check the URL and refresh cookies with POST /cookies"
	case stage == jobs.StageRetain:
		return "check temp_dir permissions and free space"
	default:
		return "inspect ffmpeg stderr in the error message"
	}
}
