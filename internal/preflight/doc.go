// Package preflight provides readiness checks for the filesystem paths and
// external binaries nightcore depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure, and
//     GET /api/status reports the latest results.
//   - The CLI "nightcore status" command renders the same results when the
//     daemon is not reachable.
package preflight
