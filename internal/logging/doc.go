// Package logging assembles structured slog loggers and formatting helpers used
// across nightcore.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so the admission gate and HTTP
// handlers automatically tag log lines with job and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
