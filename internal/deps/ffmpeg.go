package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// RequiredEncoders are the ffmpeg audio encoders the flac and mp3 outputs use.
var RequiredEncoders = []string{"flac", "libmp3lame"}

// CheckFFmpegEncoders runs `ffmpeg -hide_banner -encoders` and reports whether
// every encoder in RequiredEncoders is compiled in. Static ffmpeg builds
// sometimes ship without libmp3lame, which only surfaces once an mp3 job fails.
func CheckFFmpegEncoders(ctx context.Context, ffmpegCommand string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     strings.TrimSpace(ffmpegCommand),
		Description: "flac and libmp3lame audio encoders",
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}

	out, err := commandContext(ctx, result.Command, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := parseEncoders(string(out))
	var missing []string
	for _, name := range RequiredEncoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoders reads the listing table. Entries look like
// " A....D flac                 FLAC (Free Lossless Audio Codec)".
func parseEncoders(output string) map[string]struct{} {
	encoders := make(map[string]struct{})
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "------") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
