// Package config loads, normalizes, and validates nightcore configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PORT and NIGHTCORE_TEMP_DIR. The Config type centralizes every knob the
// daemon and CLI need, so the temp directory, sweeper timing, and tool
// binaries are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
