// Package services defines shared utilities consumed by the admission gate and
// the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper and Kind classifier that
//     turn failures into consistent outcome messages and HTTP statuses.
//
// The ytdlp and ffmpeg subpackages wrap the command-line tools the gate drives.
package services
