package jobs

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"nightcore/internal/filtergraph"
	"nightcore/internal/services"
)

// Format is the container/codec of the rendered artifact.
type Format string

const (
	FormatFLAC Format = "flac"
	FormatMP3  Format = "mp3"
)

const (
	DefaultSampleRate = 1.2
	DefaultTempo      = 1.0

	MaxSampleRate = 4.0
	MinTempo      = 0.5
	MaxTempo      = 100.0
	MaxGain       = 30
)

// ErrURLRequired is returned when a request carries no URL at all.
var ErrURLRequired = errors.New("URL required")

// videoURLPattern accepts YouTube watch, shorts, live, embed, and youtu.be links.
var videoURLPattern = regexp.MustCompile(
	`^(?:https?://)?(?:(?:www|m|music)\.)?(?:youtube\.com/(?:watch\?(?:[^#\s]*&)?v=|shorts/|live/|embed/)|youtu\.be/)[A-Za-z0-9_-]{6,}(?:[?&#][^\s]*)?$`,
)

// Request is a single generate job. It is passed by value and never mutated
// once the gate accepts it.
type Request struct {
	URL         string           `json:"url"`
	Mode        filtergraph.Mode `json:"mode"`
	Format      Format           `json:"format"`
	SampleRate  float64          `json:"sampleRate"`
	Tempo       float64          `json:"tempo"`
	BassBoost   int              `json:"bassBoost"`
	MidBoost    int              `json:"midBoost"`
	TrebleBoost int              `json:"trebleBoost"`
}

// DefaultRequest returns a request with every optional field at its default.
// Decode JSON into it so absent fields keep their defaults.
func DefaultRequest() Request {
	return Request{
		Mode:       filtergraph.ModeCustom,
		Format:     FormatFLAC,
		SampleRate: DefaultSampleRate,
		Tempo:      DefaultTempo,
	}
}

// ParseFormat resolves a user supplied format. Blank input selects flac.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatFLAC:
		return FormatFLAC, nil
	case FormatMP3:
		return FormatMP3, nil
	default:
		return "", fmt.Errorf("unknown format %q (want flac or mp3)", raw)
	}
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	if f == "" {
		return "." + string(FormatFLAC)
	}
	return "." + string(f)
}

// ValidateURL checks raw against the video-sharing allow-pattern.
func ValidateURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrURLRequired
	}
	if !videoURLPattern.MatchString(trimmed) {
		return fmt.Errorf("invalid URL: %q is not a recognizable video link", raw)
	}
	return nil
}

// Normalize fills defaults for zero-valued fields and validates the result.
// Validation failures carry services.ErrValidation; a missing URL wraps
// ErrURLRequired so callers can report it verbatim.
func Normalize(req Request) (Request, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := ValidateURL(req.URL); err != nil {
		return req, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	return NormalizeParams(req)
}

// NormalizeParams applies Normalize to everything except the URL. Filter
// previews use it directly.
func NormalizeParams(req Request) (Request, error) {
	mode, err := filtergraph.ParseMode(string(req.Mode))
	if err != nil {
		return req, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	req.Mode = mode

	format, err := ParseFormat(string(req.Format))
	if err != nil {
		return req, fmt.Errorf("%w: %w", services.ErrValidation, err)
	}
	req.Format = format

	if req.SampleRate == 0 {
		req.SampleRate = DefaultSampleRate
	}
	if req.Tempo == 0 {
		req.Tempo = DefaultTempo
	}
	if mode.IsPreset() {
		return req, nil
	}

	switch {
	case math.IsNaN(req.SampleRate) || req.SampleRate < 0 || req.SampleRate > MaxSampleRate:
		return req, fmt.Errorf("%w: sampleRate %v out of range (0, %v]", services.ErrValidation, req.SampleRate, MaxSampleRate)
	case math.IsNaN(req.Tempo) || req.Tempo < MinTempo || req.Tempo > MaxTempo:
		return req, fmt.Errorf("%w: tempo %v out of range [%v, %v]", services.ErrValidation, req.Tempo, MinTempo, MaxTempo)
	}
	for _, gain := range []struct {
		name  string
		value int
	}{{"bassBoost", req.BassBoost}, {"midBoost", req.MidBoost}, {"trebleBoost", req.TrebleBoost}} {
		if gain.value < -MaxGain || gain.value > MaxGain {
			return req, fmt.Errorf("%w: %s %d out of range [-%d, %d]", services.ErrValidation, gain.name, gain.value, MaxGain, MaxGain)
		}
	}
	return req, nil
}

// FilterParams projects the request onto the filter-graph builder input.
func (r Request) FilterParams() filtergraph.Params {
	return filtergraph.Params{
		Mode:        r.Mode,
		SampleRate:  r.SampleRate,
		Tempo:       r.Tempo,
		BassBoost:   r.BassBoost,
		MidBoost:    r.MidBoost,
		TrebleBoost: r.TrebleBoost,
	}
}
