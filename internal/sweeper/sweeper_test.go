package sweeper_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nightcore/internal/sweeper"
	"nightcore/internal/testsupport"
)

func TestNewValidatesArguments(t *testing.T) {
	if _, err := sweeper.New("", time.Second, time.Second); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := sweeper.New(t.TempDir(), 0, time.Second); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := sweeper.New(t.TempDir(), time.Second, 0); err == nil {
		t.Fatal("expected error for zero expiry")
	}
}

func TestSweepDeletesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "nightcore_1_old.flac")
	fresh := filepath.Join(dir, "nightcore_2_fresh.flac")
	original := filepath.Join(dir, "original_abc_song.flac")
	testsupport.WriteAgedFile(t, old, 10*time.Minute)
	testsupport.WriteAgedFile(t, fresh, 10*time.Second)
	testsupport.WriteAgedFile(t, original, 3*time.Minute)
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s, err := sweeper.New(dir, time.Minute, 2*time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := s.Sweep()

	if result.Scanned != 3 || result.Deleted != 2 || result.Kept != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, path := range []string{old, original} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err=%v", path, err)
		}
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh file kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested")); err != nil {
		t.Fatalf("directories must be left alone: %v", err)
	}

	at, last, lifetime := s.Last()
	if at.IsZero() || last != result || lifetime != result {
		t.Fatalf("unexpected bookkeeping %v %+v %+v", at, last, lifetime)
	}
}

func TestSweepBoundaryIsStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edge.flac")
	testsupport.WriteFile(t, path, 1)
	stamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	clock := stamp.Add(2 * time.Minute)
	s, err := sweeper.New(dir, time.Minute, 2*time.Minute, sweeper.WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if result := s.Sweep(); result.Deleted != 0 || result.Kept != 1 {
		t.Fatalf("file exactly at expiry must be kept, got %+v", result)
	}

	clock = clock.Add(time.Second)
	if result := s.Sweep(); result.Deleted != 1 {
		t.Fatalf("file past expiry must be deleted, got %+v", result)
	}
}

func TestSweepMissingDirectoryDoesNotPanic(t *testing.T) {
	s, err := sweeper.New(filepath.Join(t.TempDir(), "absent"), time.Minute, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if result := s.Sweep(); result != (sweeper.Result{}) {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestRunSweepsOnEveryTick(t *testing.T) {
	dir := t.TempDir()
	s, err := sweeper.New(dir, 20*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for _, name := range []string{"stale.mp3", "later.mp3"} {
		target := filepath.Join(dir, name)
		testsupport.WriteAgedFile(t, target, time.Hour)
		waitForRemoval(t, target)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func waitForRemoval(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected background sweep to remove %s", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweepContinuesPastRemoveFailure(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "nightcore_1_a.flac")
	stuck := filepath.Join(dir, "nightcore_2_b.flac")
	gone := filepath.Join(dir, "nightcore_3_c.flac")
	last := filepath.Join(dir, "nightcore_4_d.flac")
	for _, path := range []string{first, stuck, gone, last} {
		testsupport.WriteAgedFile(t, path, 10*time.Minute)
	}

	var attempted []string
	remove := func(path string) error {
		attempted = append(attempted, path)
		switch path {
		case stuck:
			return &os.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
		case gone:
			// Removed by someone else between listing and removal.
			if err := os.Remove(path); err != nil {
				return err
			}
			return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
		}
		return os.Remove(path)
	}

	s, err := sweeper.New(dir, time.Minute, 2*time.Minute, sweeper.WithRemove(remove))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := s.Sweep()

	if result.Scanned != 4 || result.Deleted != 2 || result.Failed != 1 || result.Kept != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(attempted) != 4 {
		t.Fatalf("expected every expired file attempted, got %v", attempted)
	}
	for _, path := range []string{first, last} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed after the failure, stat err=%v", path, err)
		}
	}
	if _, err := os.Stat(stuck); err != nil {
		t.Fatalf("expected failed file to remain: %v", err)
	}

	_, _, lifetime := s.Last()
	if lifetime.Failed != 1 {
		t.Fatalf("expected failure in lifetime totals, got %+v", lifetime)
	}
}
