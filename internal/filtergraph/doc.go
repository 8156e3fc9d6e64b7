// Package filtergraph renders ffmpeg audio filter strings for the nightcore
// modes. Preset modes map to fixed strings; custom mode builds a retune,
// resample, tempo, and equalizer chain from numeric parameters.
package filtergraph
