package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nightcore/internal/jobs"
)

// FakeExtractor writes a small audio file into Dir for every URL it sees.
type FakeExtractor struct {
	Dir   string
	Title string
	Err   error
	Delay time.Duration
	// Panic makes Extract panic with this value when non-nil.
	Panic any

	calls atomic.Int64
	mu    sync.Mutex
	urls  []string
}

// Extract records url and creates "<Title>.flac" in Dir.
func (f *FakeExtractor) Extract(ctx context.Context, url string) (string, string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", "", f.Err
	}
	title := f.Title
	if title == "" {
		title = "Test Song"
	}
	path := filepath.Join(f.Dir, fmt.Sprintf("%s-%d.flac", title, f.calls.Load()))
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		return "", "", err
	}
	return path, title, nil
}

// Calls reports how many times Extract ran.
func (f *FakeExtractor) Calls() int {
	return int(f.calls.Load())
}

// URLs returns the URLs passed to Extract in call order.
func (f *FakeExtractor) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// FakeFilter renders by copying the input into Dir and tracks how many
// invocations overlap.
type FakeFilter struct {
	Dir   string
	Err   error
	Delay time.Duration

	calls      atomic.Int64
	active     atomic.Int64
	maxActive  atomic.Int64
	mu         sync.Mutex
	graphs     []string
	lastFormat jobs.Format
}

// Filter copies inputPath to a nightcore_fake_<n><ext> file in Dir.
func (f *FakeFilter) Filter(ctx context.Context, inputPath, graph string, format jobs.Format) (string, error) {
	n := f.calls.Add(1)
	current := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxActive.Load()
		if current <= prev || f.maxActive.CompareAndSwap(prev, current) {
			break
		}
	}

	f.mu.Lock()
	f.graphs = append(f.graphs, graph)
	f.lastFormat = format
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", errors.New("fake filter: input missing: " + err.Error())
	}
	out := filepath.Join(f.Dir, fmt.Sprintf("nightcore_fake_%d%s", n, format.Extension()))
	if err := os.WriteFile(out, append(data, []byte(strings.ToUpper(graph))...), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// Calls reports how many times Filter ran.
func (f *FakeFilter) Calls() int {
	return int(f.calls.Load())
}

// MaxConcurrent reports the highest number of overlapping Filter calls.
func (f *FakeFilter) MaxConcurrent() int {
	return int(f.maxActive.Load())
}

// Graphs returns the filter graphs passed to Filter in call order.
func (f *FakeFilter) Graphs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.graphs...)
}

// LastFormat returns the most recent requested format.
func (f *FakeFilter) LastFormat() jobs.Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFormat
}
