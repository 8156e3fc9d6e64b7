package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nightcore/internal/fileutil"
	"nightcore/internal/services"
)

// Store resolves artifacts inside the single shared temp directory. It keeps
// no registry; the directory listing is the only state.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

// Dir returns the temp directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path joins a validated name onto the temp directory.
func (s *Store) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", services.Wrap(services.ErrNotFound, "artifact", "resolve", fmt.Sprintf("invalid artifact name %q", name), nil)
	}
	return filepath.Join(s.dir, name), nil
}

// Resolve returns the path of an existing regular file named name. Unsafe
// names and missing or swept files both yield services.ErrNotFound.
func (s *Store) Resolve(name string) (string, os.FileInfo, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, services.Wrap(services.ErrNotFound, "artifact", "resolve", name, err)
		}
		return "", nil, services.Wrap(services.ErrTransient, "artifact", "stat", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, services.Wrap(services.ErrNotFound, "artifact", "resolve", name+" is not a regular file", nil)
	}
	return path, info, nil
}

// RetainOriginal moves a downloaded source into the temp directory under its
// original_ name and returns the new path. The file stays downloadable until the
// sweeper expires it.
func (s *Store) RetainOriginal(sourcePath, displayName, jobID string) (string, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return "", services.Wrap(services.ErrNotFound, "artifact", "retain", "source path required", nil)
	}
	title := strings.TrimSpace(displayName)
	if title == "" {
		base := filepath.Base(sourcePath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	name := OriginalName(jobID, title, filepath.Ext(sourcePath))
	dest := filepath.Join(s.dir, name)
	if err := fileutil.Move(sourcePath, dest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "artifact", "retain", "downloaded file vanished", err)
		}
		return "", services.Wrap(services.ErrTransient, "artifact", "retain", "rename original", err)
	}
	// Expiry counts from retention, not from the upload date yt-dlp may stamp.
	now := time.Now()
	if err := os.Chtimes(dest, now, now); err != nil {
		return "", services.Wrap(services.ErrTransient, "artifact", "retain", "touch original", err)
	}
	return dest, nil
}
