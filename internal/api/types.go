package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// GateStatus describes the single job slot.
type GateStatus struct {
	Busy         bool   `json:"busy"`
	Waiting      int    `json:"waiting"`
	CurrentJobID string `json:"currentJobId,omitempty"`
	Since        string `json:"since,omitempty"`
	Completed    uint64 `json:"completed"`
	Failed       uint64 `json:"failed"`
	Rejected     uint64 `json:"rejected"`
}

// SweepResult mirrors a single sweep pass.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
	Kept    int `json:"kept"`
}

// SweeperStatus reports the artifact sweeper schedule and its last run.
type SweeperStatus struct {
	IntervalSeconds int         `json:"intervalSeconds"`
	ExpirySeconds   int         `json:"expirySeconds"`
	LastRun         string      `json:"lastRun,omitempty"`
	Last            SweepResult `json:"last"`
	Lifetime        SweepResult `json:"lifetime"`
}

// TempDirStatus summarizes the shared temp directory.
type TempDirStatus struct {
	Path      string `json:"path"`
	Files     int    `json:"files"`
	Bytes     int64  `json:"bytes"`
	FreeMiB   uint64 `json:"freeMiB"`
	OldestAge string `json:"oldestAge,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// CookieStatus describes the jar the extractor would use.
type CookieStatus struct {
	Path      string `json:"path,omitempty"`
	Present   bool   `json:"present"`
	Size      int64  `json:"size,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Fallback  bool   `json:"fallback"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Version       string             `json:"version"`
	StartedAt     string             `json:"startedAt,omitempty"`
	UptimeSeconds int64              `json:"uptimeSeconds"`
	LockFilePath  string             `json:"lockFilePath"`
	Gate          GateStatus         `json:"gate"`
	Sweeper       SweeperStatus      `json:"sweeper"`
	TempDir       TempDirStatus      `json:"tempDir"`
	Cookies       CookieStatus       `json:"cookies"`
	RateClients   int                `json:"rateLimitClients"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Preflight     []CheckResult      `json:"preflight"`
}

// ErrorResponse is the body of non-job error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CookieUploadResponse acknowledges a replaced cookie jar.
type CookieUploadResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Bytes   int    `json:"bytes"`
}
