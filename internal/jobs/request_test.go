package jobs_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nightcore/internal/filtergraph"
	"nightcore/internal/jobs"
	"nightcore/internal/services"
)

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
		"http://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
		"https://music.youtube.com/watch?v=dQw4w9WgXcQ&list=RDAMVM",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ?si=abc",
		"https://www.youtube.com/shorts/abcdefghijk",
		"https://www.youtube.com/live/abcdefghijk",
	}
	for _, raw := range valid {
		if err := jobs.ValidateURL(raw); err != nil {
			t.Errorf("ValidateURL(%q) unexpected error: %v", raw, err)
		}
	}

	invalid := []string{
		"not a url",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/",
		"https://www.youtube.com/watch?v=",
		"ftp://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ; rm -rf /",
	}
	for _, raw := range invalid {
		err := jobs.ValidateURL(raw)
		if err == nil {
			t.Errorf("ValidateURL(%q) expected error", raw)
			continue
		}
		if !strings.Contains(err.Error(), "invalid URL") {
			t.Errorf("ValidateURL(%q) error %q should name the input as invalid", raw, err)
		}
	}

	if err := jobs.ValidateURL("  "); !errors.Is(err, jobs.ErrURLRequired) {
		t.Fatalf("expected ErrURLRequired for blank input, got %v", err)
	}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	req, err := jobs.Normalize(jobs.Request{URL: " https://youtu.be/dQw4w9WgXcQ "})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if req.URL != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatalf("expected trimmed url, got %q", req.URL)
	}
	if req.Mode != filtergraph.ModeCustom || req.Format != jobs.FormatFLAC {
		t.Fatalf("unexpected mode/format defaults: %q %q", req.Mode, req.Format)
	}
	if req.SampleRate != jobs.DefaultSampleRate || req.Tempo != jobs.DefaultTempo {
		t.Fatalf("unexpected numeric defaults: %v %v", req.SampleRate, req.Tempo)
	}
}

func TestNormalizeRejectsBadParameters(t *testing.T) {
	base := jobs.DefaultRequest()
	base.URL = "https://youtu.be/dQw4w9WgXcQ"

	cases := []struct {
		name   string
		mutate func(*jobs.Request)
	}{
		{"unknown mode", func(r *jobs.Request) { r.Mode = "chipmunk" }},
		{"unknown format", func(r *jobs.Request) { r.Format = "wav" }},
		{"negative rate", func(r *jobs.Request) { r.SampleRate = -1 }},
		{"huge rate", func(r *jobs.Request) { r.SampleRate = 9 }},
		{"slow tempo", func(r *jobs.Request) { r.Tempo = 0.1 }},
		{"loud bass", func(r *jobs.Request) { r.BassBoost = 31 }},
		{"quiet treble", func(r *jobs.Request) { r.TrebleBoost = -31 }},
		{"missing url", func(r *jobs.Request) { r.URL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := jobs.Normalize(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestNormalizePresetSkipsNumericBounds(t *testing.T) {
	req := jobs.Request{URL: "https://youtu.be/dQw4w9WgXcQ", Mode: filtergraph.ModeVocalFree, Tempo: 500, BassBoost: 99}
	if _, err := jobs.Normalize(req); err != nil {
		t.Fatalf("preset modes should ignore numeric params: %v", err)
	}
}

func TestNormalizeParamsIgnoresURL(t *testing.T) {
	req, err := jobs.NormalizeParams(jobs.Request{Tempo: 1.5})
	if err != nil {
		t.Fatalf("NormalizeParams: %v", err)
	}
	if req.Mode != filtergraph.ModeCustom || req.SampleRate != jobs.DefaultSampleRate || req.Format != jobs.FormatFLAC {
		t.Fatalf("defaults not applied: %+v", req)
	}
	if _, err := jobs.NormalizeParams(jobs.Request{Tempo: 0.1}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestJSONKeepsDefaultsForAbsentFields(t *testing.T) {
	req := jobs.DefaultRequest()
	if err := json.Unmarshal([]byte(`{"url":"https://youtu.be/dQw4w9WgXcQ","trebleBoost":3}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.SampleRate != 1.2 || req.Tempo != 1.0 || req.TrebleBoost != 3 || req.Format != jobs.FormatFLAC {
		t.Fatalf("unexpected decoded request: %+v", req)
	}
	got := filtergraph.Build(req.FilterParams())
	if got != "asetrate=44100*1.2,aresample=44100,equalizer=f=8000:t=q:w=1:g=3" {
		t.Fatalf("unexpected graph %q", got)
	}
}

func TestFormatExtension(t *testing.T) {
	if jobs.FormatMP3.Extension() != ".mp3" || jobs.FormatFLAC.Extension() != ".flac" || jobs.Format("").Extension() != ".flac" {
		t.Fatal("unexpected extensions")
	}
}

func TestOutcomeJSONShape(t *testing.T) {
	data, err := json.Marshal(jobs.Outcome{Success: true, Filename: "a.flac", OriginalFilename: "original_x.flac", Sarcasm: "ok"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"success":true,"filename":"a.flac","originalFilename":"original_x.flac","sarcasm":"ok"}`
	if string(data) != want {
		t.Fatalf("unexpected json %s", data)
	}

	data, _ = json.Marshal(jobs.Failed("URL required", "nope"))
	if string(data) != `{"success":false,"error":"URL required","sarcasm":"nope"}` {
		t.Fatalf("unexpected failure json %s", data)
	}
}
