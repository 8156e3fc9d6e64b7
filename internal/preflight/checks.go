package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"nightcore/internal/config"
	"nightcore/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeSpaceMiB reports the space available to unprivileged users on the
// filesystem holding path.
func FreeSpaceMiB(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize) / (1 << 20), nil
}

// CheckFreeSpace fails when path has less than minMiB available. A minMiB of
// zero only reports the figure.
func CheckFreeSpace(name, path string, minMiB int) Result {
	free, err := FreeSpaceMiB(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%d MiB free", free)
	if minMiB > 0 && free < uint64(minMiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (below %d MiB minimum)", detail, minMiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCookieJar reports whether a cookie jar is available to the extractor.
// A missing jar is a failure because YouTube blocks most anonymous downloads.
func CheckCookieJar(candidates []string) Result {
	const name = "Cookie jar"
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		age := time.Since(info.ModTime()).Round(time.Hour)
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (updated %s ago)", candidate, age)}
	}
	return Result{Name: name, Detail: "no cookie jar found; upload one with POST /cookies"}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list. The encoder probe only runs when ffmpeg itself resolves.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	for _, st := range statuses {
		if st.Name == "FFmpeg" && st.Available {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			statuses = append(statuses, deps.CheckFFmpegEncoders(probeCtx, st.Command))
			cancel()
			break
		}
	}
	return statuses
}
