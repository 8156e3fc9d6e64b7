// Package api defines the wire-format types returned by the daemon's JSON
// endpoints and decoded by the CLI.
//
// Job requests and outcomes are not duplicated here: /generate speaks
// jobs.Request and jobs.Outcome directly so the browser form and the CLI share
// one shape. This package covers the operational payloads only.
//
// # Key Types
//
// DaemonStatus: everything GET /api/status reports, composed of GateStatus,
// SweeperStatus, TempDirStatus, CookieStatus, dependency probes, and preflight
// results.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds and are omitted when unset.
package api
