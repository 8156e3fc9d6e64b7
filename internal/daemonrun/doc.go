// Package daemonrun is the composition root for the nightcore daemon
// process. It builds the logger, the tool clients, the admission gate, the
// sweeper, and the HTTP daemon from configuration, then blocks until a
// shutdown signal arrives.
package daemonrun
