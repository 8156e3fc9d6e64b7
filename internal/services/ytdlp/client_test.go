package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"nightcore/internal/services"
)

type stubCookies struct {
	path     string
	err      error
	released bool
}

func (s *stubCookies) Lease(context.Context) (string, func(), error) {
	if s.err != nil {
		return "", func() {}, s.err
	}
	return s.path, func() { s.released = true }, nil
}

func stubCommand(t *testing.T, mode, outputPath string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("YTDLP_HELPER_MODE=%s", mode),
			fmt.Sprintf("YTDLP_HELPER_OUTPUT=%s", outputPath),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestNewRequiresOutputDir(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for blank output dir")
	}
}

func TestExtractBuildsArgsAndReturnsFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "Cool Song.flac")
	var args []string
	stubCommand(t, "success", output, &args)

	jar := &stubCookies{path: "/secrets/cookies.txt"}
	client, err := New(dir, WithBinary("/usr/local/bin/yt-dlp"), WithCookies(jar))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	path, title, err := client.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if path != output || title != "Cool Song" {
		t.Fatalf("unexpected result %q %q", path, title)
	}
	if !jar.released {
		t.Fatal("expected cookie lease to be released")
	}

	want := []string{
		"/usr/local/bin/yt-dlp",
		"-x", "--audio-format", "flac", "--audio-quality", "0",
		"--extractor-args", DefaultExtractorArgs,
		"--cookies", "/secrets/cookies.txt",
		"https://youtu.be/dQw4w9WgXcQ",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--print", "after_move:filepath",
		"--no-mtime",
		"--no-warnings",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", args, want)
	}
}

func TestExtractOmitsCookiesWhenNoJar(t *testing.T) {
	dir := t.TempDir()
	var args []string
	stubCommand(t, "success", filepath.Join(dir, "x.flac"), &args)

	client, err := New(dir, WithCookies(&stubCookies{}), WithExtractorArgs(""))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := client.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if slices.Contains(args, "--cookies") || slices.Contains(args, "--extractor-args") {
		t.Fatalf("unexpected optional flags in %v", args)
	}
}

func TestExtractFailures(t *testing.T) {
	cases := []struct {
		name   string
		mode   string
		marker error
	}{
		{"tool failure", "failure", services.ErrExternalTool},
		{"missing output", "ghost", services.ErrNotFound},
		{"no stdout", "silent", services.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			stubCommand(t, tc.mode, filepath.Join(dir, "never.flac"), nil)
			client, err := New(dir)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, _, err = client.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
		})
	}
}

func TestExtractTimeout(t *testing.T) {
	dir := t.TempDir()
	stubCommand(t, "hang", filepath.Join(dir, "x.flac"), nil)
	client, err := New(dir, WithTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, _, err = client.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if services.Message(err) == "" {
		t.Fatal("expected human readable message")
	}
}

func TestExtractCookieLeaseFailure(t *testing.T) {
	client, err := New(t.TempDir(), WithCookies(&stubCookies{err: errors.New("locked")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := client.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ"); err == nil {
		t.Fatal("expected lease error")
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("[info] x\n/tmp/a.flac\n\n  \n"); got != "/tmp/a.flac" {
		t.Fatalf("unexpected last line %q", got)
	}
	if got := lastLine("   "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	output := os.Getenv("YTDLP_HELPER_OUTPUT")
	switch os.Getenv("YTDLP_HELPER_MODE") {
	case "success":
		if err := os.WriteFile(output, []byte("flac"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Println("[youtube] dQw4w9WgXcQ: Downloading webpage")
		fmt.Println(output)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "ERROR: [youtube] dQw4w9WgXcQ: Sign in to confirm you're not a bot")
		os.Exit(1)
	case "ghost":
		fmt.Println(output)
		os.Exit(0)
	case "silent":
		os.Exit(0)
	case "hang":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
