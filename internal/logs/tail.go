package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	defaultPoll   = 250 * time.Millisecond
	maxLineLength = 1024 * 1024
)

// Last returns up to n trailing lines of path and the offset just past them.
// A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		size, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, size, nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	ring := make([]string, n)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % n
		if count < n {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == n {
		for i := range count {
			lines[i] = ring[(idx+i)%n]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// Follower streams lines appended to a log path. The path may be a link that
// gets repointed when the daemon restarts; the follower notices the new file
// and starts reading it from the top.
type Follower struct {
	path   string
	offset int64
	file   os.FileInfo
	poll   time.Duration
}

// NewFollower starts following path at offset, typically the offset returned
// by Last.
func NewFollower(path string, offset int64, poll time.Duration) *Follower {
	if poll <= 0 {
		poll = defaultPoll
	}
	f := &Follower{path: path, offset: offset, poll: poll}
	if info, err := os.Stat(path); err == nil {
		f.file = info
	}
	return f
}

// Run calls emit for every new line until ctx ends. It returns nil on
// cancellation.
func (f *Follower) Run(ctx context.Context, emit func(string)) error {
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()
	for {
		lines, err := f.Poll()
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads whatever was appended since the last call.
func (f *Follower) Poll() ([]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.file, f.offset = nil, 0
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", f.path)
	}
	if f.file == nil || !os.SameFile(f.file, info) || info.Size() < f.offset {
		f.offset = 0
	}
	f.file = info
	if info.Size() == f.offset {
		return nil, nil
	}

	lines, next, err := readFrom(f.path, f.offset)
	if err != nil {
		return nil, err
	}
	f.offset = next
	return lines, nil
}

// Offset reports the read position in the current file.
func (f *Follower) Offset() int64 {
	return f.offset
}

// readFrom returns the complete lines after offset. A trailing partial line is
// left for the next read.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
	return lines, offset, nil
}
