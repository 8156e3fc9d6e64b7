// Package logs reads the daemon's log file for `nightcore logs`.
//
// Last returns the trailing lines with bounded memory. Follower polls for
// appended lines and copes with the nightcore.log link being repointed to a
// fresh file when the daemon restarts.
package logs
