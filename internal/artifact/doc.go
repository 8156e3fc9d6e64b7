// Package artifact names, retains, and resolves the temporary files that live
// in the shared temp directory: rendered outputs, retained originals, and
// download lookups that must never escape the directory.
package artifact
