package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"nightcore/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "ffmpeg", "filter", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ffmpeg", "filter", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.ErrorKind
	}{
		{"nil", nil, services.KindNone},
		{"validation", services.Wrap(services.ErrValidation, "gate", "validate", "bad url", nil), services.KindValidation},
		{"tool", services.Wrap(services.ErrExternalTool, "ytdlp", "extract", "exit 1", nil), services.KindExternalTool},
		{"timeout wrapped in tool", fmt.Errorf("%w: %w", services.ErrExternalTool, services.ErrTimeout), services.KindTimeout},
		{"not found", services.Wrap(services.ErrNotFound, "artifact", "open", "gone", nil), services.KindNotFound},
		{"config", services.Wrap(services.ErrConfiguration, "daemon", "start", "no temp", nil), services.KindConfiguration},
		{"plain", context.Canceled, services.KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Kind(tc.err); got != tc.want {
				t.Fatalf("Kind() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "ytdlp", "download", "Download failed", errors.New("exit status 1"))
	if got := services.Message(err); got != "ytdlp: download: Download failed: exit status 1" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := services.Message(errors.New("plain")); got != "plain" {
		t.Fatalf("unexpected plain message %q", got)
	}
	if got := services.Message(nil); got != "" {
		t.Fatalf("expected empty message for nil, got %q", got)
	}
}
