package api

import (
	"time"

	"nightcore/internal/admission"
	"nightcore/internal/cookies"
	"nightcore/internal/deps"
	"nightcore/internal/preflight"
	"nightcore/internal/sweeper"
)

// FormatTime renders t in the API timestamp format, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FromGateStatus converts the admission gate snapshot.
func FromGateStatus(status admission.Status) GateStatus {
	return GateStatus{
		Busy:         status.Busy,
		Waiting:      status.Waiting,
		CurrentJobID: status.CurrentJobID,
		Since:        FormatTime(status.Since),
		Completed:    status.Completed,
		Failed:       status.Failed,
		Rejected:     status.Rejected,
	}
}

// FromSweepResult converts a single sweep result.
func FromSweepResult(result sweeper.Result) SweepResult {
	return SweepResult{
		Scanned: result.Scanned,
		Deleted: result.Deleted,
		Failed:  result.Failed,
		Kept:    result.Kept,
	}
}

// FromSweeper snapshots the sweeper schedule and counters.
func FromSweeper(s *sweeper.Sweeper) SweeperStatus {
	if s == nil {
		return SweeperStatus{}
	}
	lastRun, last, lifetime := s.Last()
	return SweeperStatus{
		IntervalSeconds: int(s.Interval() / time.Second),
		ExpirySeconds:   int(s.Expiry() / time.Second),
		LastRun:         FormatTime(lastRun),
		Last:            FromSweepResult(last),
		Lifetime:        FromSweepResult(lifetime),
	}
}

// FromDependencies converts dependency probes.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromCookieInfo converts the cookie jar description.
func FromCookieInfo(info cookies.Info) CookieStatus {
	return CookieStatus{
		Path:      info.Path,
		Present:   info.Present,
		Size:      info.Size,
		UpdatedAt: FormatTime(info.ModTime),
		Fallback:  info.Fallback,
	}
}
