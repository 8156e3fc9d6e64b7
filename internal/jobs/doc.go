// Package jobs holds the request and outcome model shared by the admission
// gate, the HTTP layer, and the CLI: defaults, URL and parameter validation,
// and the flavor text attached to every outcome.
package jobs
