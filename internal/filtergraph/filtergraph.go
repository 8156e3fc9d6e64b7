package filtergraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects between the custom chain and the fixed preset recipes.
type Mode string

const (
	ModeCustom    Mode = "custom"
	ModeNightcore Mode = "nightcore"
	ModeDaycore   Mode = "daycore"
	ModeVocalFree Mode = "vocalfree"
)

const (
	// BaseSampleRate is the rate every chain resamples back to.
	BaseSampleRate = 44100

	bassFrequency   = 100
	midFrequency    = 3000
	trebleFrequency = 8000
)

var presets = map[Mode]string{
	ModeVocalFree: "pan=stereo|c0=c0-c1|c1=c1-c0,highpass=f=120,lowpass=f=16000",
	ModeNightcore: "asetrate=44100*1.25,aresample=44100",
	ModeDaycore:   "asetrate=44100*0.8,aresample=44100",
}

// Params carries the knobs of a custom chain. Preset modes ignore the numeric
// fields.
type Params struct {
	Mode        Mode
	SampleRate  float64
	Tempo       float64
	BassBoost   int
	MidBoost    int
	TrebleBoost int
}

// ParseMode resolves a user supplied mode. Blank input selects custom.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if mode == "" {
		return ModeCustom, nil
	}
	if mode.Valid() {
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q (want one of %s)", raw, strings.Join(ModeNames(), ", "))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	if m == ModeCustom {
		return true
	}
	_, ok := presets[m]
	return ok
}

// IsPreset reports whether m maps to a fixed filter string.
func (m Mode) IsPreset() bool {
	_, ok := presets[m]
	return ok
}

// ModeNames lists the accepted modes in display order.
func ModeNames() []string {
	return []string{string(ModeCustom), string(ModeNightcore), string(ModeDaycore), string(ModeVocalFree)}
}

// Preset returns the fixed filter string for a preset mode.
func Preset(m Mode) (string, bool) {
	graph, ok := presets[m]
	return graph, ok
}

// Build renders the ffmpeg audio filter graph for p. Stages are emitted in a
// fixed order: retune, resample, tempo, bass, mid, treble. Conditional stages
// appear only when their parameter differs from its neutral value.
func Build(p Params) string {
	if graph, ok := presets[p.Mode]; ok {
		return graph
	}

	parts := []string{
		"asetrate=" + strconv.Itoa(BaseSampleRate) + "*" + FormatFactor(p.SampleRate),
		"aresample=" + strconv.Itoa(BaseSampleRate),
	}
	if p.Tempo != 1.0 {
		parts = append(parts, "atempo="+FormatFactor(p.Tempo))
	}
	if p.BassBoost != 0 {
		parts = append(parts, equalizer(bassFrequency, p.BassBoost))
	}
	if p.MidBoost != 0 {
		parts = append(parts, equalizer(midFrequency, p.MidBoost))
	}
	if p.TrebleBoost != 0 {
		parts = append(parts, equalizer(trebleFrequency, p.TrebleBoost))
	}
	return strings.Join(parts, ",")
}

// FormatFactor prints f in its shortest form while keeping at least one
// decimal place, so 1 renders as "1.0" and 0.85 as "0.85".
func FormatFactor(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func equalizer(frequency, gain int) string {
	return fmt.Sprintf("equalizer=f=%d:t=q:w=1:g=%d", frequency, gain)
}
