// Package daemon runs the long-lived nightcore process: the HTTP surface,
// the artifact sweeper goroutine, and the single-instance lock.
//
// The daemon does not build its collaborators. The admission gate, sweeper,
// artifact store, cookie jar, and optional rate limiter arrive through
// Components from the composition root in daemonrun, so tests can drive the
// router with fakes.
//
// Routes:
//   - GET  /                     embedded form page
//   - POST /generate             jobs.Request in, jobs.Outcome out
//   - GET  /download/{filename}  artifact bytes as an attachment
//   - POST /cookies              replace the yt-dlp cookie jar (bearer token)
//   - GET  /api/status           api.DaemonStatus
//
// Every response carries X-Request-ID; the id flows into job logs through the
// request context.
package daemon
