// Package ffmpeg wraps the ffmpeg command-line tool for the render step: it
// applies an audio filter graph and encodes FLAC or MP3 into the temp
// directory under a hard timeout.
package ffmpeg
