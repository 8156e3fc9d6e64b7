package cookies

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"nightcore/internal/fileutil"
	"nightcore/internal/logging"
	"nightcore/internal/services"
)

// DefaultMaxBytes caps uploaded jars when no limit is configured.
const DefaultMaxBytes = 1 << 20

var headers = []string{"# Netscape HTTP Cookie File", "# HTTP Cookie File"}

var domainMarkers = []string{"youtube.com", "google.com", "youtu.be"}

const lockRetryDelay = 50 * time.Millisecond

// Info describes the jar the extractor would use right now.
type Info struct {
	Path    string    `json:"path,omitempty"`
	Present bool      `json:"present"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mod_time,omitzero"`
	// Fallback is true when the jar came from a fallback location rather than
	// the writable primary path.
	Fallback bool `json:"fallback"`
}

// Jar manages the Netscape cookie file handed to yt-dlp. Writes replace the
// primary path atomically under an exclusive file lock; the extractor holds
// the same lock while yt-dlp may rewrite the jar.
type Jar struct {
	path      string
	fallbacks []string
	maxBytes  int64
	lockPath  string
	logger    *slog.Logger
}

// New returns a jar rooted at path. fallbacks are consulted, read-only, when
// path does not exist.
func New(path string, fallbacks []string, maxBytes int64, logger *slog.Logger) *Jar {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	path = strings.TrimSpace(path)
	j := &Jar{
		path:      path,
		fallbacks: append([]string(nil), fallbacks...),
		maxBytes:  maxBytes,
		logger:    logging.NewComponentLogger(logger, "cookies"),
	}
	if path != "" {
		j.lockPath = path + ".lock"
	}
	return j
}

// Path returns the writable primary location.
func (j *Jar) Path() string {
	return j.path
}

// MaxBytes returns the upload size limit.
func (j *Jar) MaxBytes() int64 {
	return j.maxBytes
}

// Validate checks that data looks like a cookie jar worth handing to the
// extractor.
func Validate(data []byte, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return services.Wrap(services.ErrValidation, "cookies", "validate", "cookie payload is empty", nil)
	case int64(len(data)) > maxBytes:
		return services.Wrap(services.ErrValidation, "cookies", "validate", fmt.Sprintf("cookie payload exceeds %d bytes", maxBytes), nil)
	}
	if hasHeader(trimmed) || hasDomainMarker(trimmed) {
		return nil
	}
	return services.Wrap(services.ErrValidation, "cookies", "validate",
		"payload is not a Netscape cookie jar (no header and no youtube.com, google.com, or youtu.be entries)", nil)
}

// Write validates data and atomically replaces the primary jar.
func (j *Jar) Write(ctx context.Context, data []byte) error {
	if err := Validate(data, j.maxBytes); err != nil {
		return err
	}
	if j.path == "" {
		return services.Wrap(services.ErrConfiguration, "cookies", "write", "cookies.path is not configured", nil)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return services.Wrap(services.ErrConfiguration, "cookies", "write", "create cookie directory", err)
	}

	release, err := j.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := fileutil.WriteAtomic(j.path, data, 0o600); err != nil {
		return services.Wrap(services.ErrTransient, "cookies", "write", "replace cookie jar", err)
	}

	j.logger.Info("cookie jar updated",
		logging.String(logging.FieldEventType, "cookies_updated"),
		logging.String("path", j.path),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// Lease returns the jar the extractor should use and a release func. The
// primary jar is locked for the lease duration; fallback jars are not. When
// no jar exists path is empty and release is a no-op.
func (j *Jar) Lease(ctx context.Context) (string, func(), error) {
	path, fallback := j.resolve()
	if path == "" {
		logging.WarnWithContext(j.logger, "no cookie jar found; extraction may be blocked", "cookies_missing",
			logging.String("path", j.path),
			logging.String(logging.FieldErrorHint, "upload a Netscape cookie export via POST /cookies or nightcore cookies set"),
			logging.String(logging.FieldImpact, "YouTube may refuse anonymous downloads"),
		)
		return "", func() {}, nil
	}
	if fallback {
		return path, func() {}, nil
	}
	release, err := j.acquire(ctx)
	if err != nil {
		return "", func() {}, err
	}
	return path, release, nil
}

// Info reports the jar that Lease would hand out.
func (j *Jar) Info() Info {
	path, fallback := j.resolve()
	if path == "" {
		return Info{Path: j.path}
	}
	info := Info{Path: path, Present: true, Fallback: fallback}
	if st, err := os.Stat(path); err == nil {
		info.Size = st.Size()
		info.ModTime = st.ModTime()
	}
	return info
}

func (j *Jar) resolve() (string, bool) {
	if j.path != "" && fileExists(j.path) {
		return j.path, false
	}
	for _, candidate := range j.fallbacks {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" && fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (j *Jar) acquire(ctx context.Context) (func(), error) {
	if j.lockPath == "" {
		return func() {}, nil
	}
	// Each holder gets its own descriptor; flock does not exclude a second
	// lock taken through the same one.
	lock := flock.New(j.lockPath)
	if ctx == nil {
		ctx = context.Background()
	}
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		_ = lock.Close()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "cookies", "lock", "timed out waiting for cookie jar lock", err)
		}
		return nil, services.Wrap(services.ErrTransient, "cookies", "lock", "acquire cookie jar lock", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "cookies", "lock", "cookie jar is locked", nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			j.logger.Warn("release cookie jar lock failed", logging.Error(err))
		}
	}, nil
}

func hasHeader(data []byte) bool {
	for _, header := range headers {
		if bytes.HasPrefix(data, []byte(header)) {
			return true
		}
	}
	return false
}

func hasDomainMarker(data []byte) bool {
	lower := bytes.ToLower(data)
	for _, marker := range domainMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
