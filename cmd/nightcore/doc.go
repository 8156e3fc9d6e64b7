// Package main hosts the nightcore CLI entrypoint and command graph.
//
// `nightcore serve` runs the daemon in the foreground. Every other command
// either talks to a running daemon over its HTTP API (generate, cookies,
// status, stop) or works on local state directly (filter, sweep, config).
// Configuration resolution happens once per invocation in commandContext so
// subcommands can focus on output instead of wiring.
//
// Keep this package lean: add new behavior to the internal packages first and
// surface it here through a dedicated command or flag.
package main
