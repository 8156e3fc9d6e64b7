// Package sweeper expires temporary artifacts. A single goroutine ticks at a
// fixed interval and removes every regular file in the temp directory whose
// modification time is older than the expiry window.
package sweeper
