// Package daemonctl is the CLI side of the daemon: an HTTP client for its
// JSON endpoints plus helpers that launch, stop, and inspect the daemon
// process.
package daemonctl
