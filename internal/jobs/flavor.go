package jobs

import (
	"math/rand/v2"

	"nightcore/internal/services"
)

// Stage names the step of a job that produced an outcome.
type Stage string

const (
	StageValidate Stage = "validate"
	StageExtract  Stage = "extract"
	StageRetain   Stage = "retain"
	StageFilter   Stage = "filter"
)

// QueuedPrefix decorates outcomes of jobs that waited for the slot.
const QueuedPrefix = "Finally your turn. "

// VocalFreeWarning is appended to vocalfree outcomes.
const VocalFreeWarning = "VOCAL FREE is in beta. It might mess up your audio, or it might just give up. Use at your own risk."

var successFlavors = []string{
	"Fine, here's your nightcore. Don't play it too loud, my ears are bleeding.",
	"Done. It's high pitched. Are you happy now?",
	"Your audio has been processed. Try not to break anything else.",
}

var errorFlavors = []string{
	"Your URL is as broken as my dreams.",
	"Something went wrong. It's definitely your fault, not mine.",
	"FFmpeg threw a tantrum. Maybe give it a better input next time?",
}

const (
	downloadTimeoutFlavor   = "Download timed out. Maybe your internet is still on dial-up?"
	processingTimeoutFlavor = "Processing timed out. This song is probably too long for me to care."
)

// Picker returns an index in [0, n). Tests inject a deterministic one.
type Picker func(n int) int

// RandomPicker draws from math/rand/v2.
func RandomPicker(n int) int {
	return rand.IntN(n)
}

func (p Picker) choose(pool []string) string {
	if p == nil {
		p = RandomPicker
	}
	idx := p(len(pool))
	if idx < 0 || idx >= len(pool) {
		idx = 0
	}
	return pool[idx]
}

// SuccessFlavor picks a success line.
func SuccessFlavor(pick Picker) string {
	return pick.choose(successFlavors)
}

// ErrorFlavor picks a failure line matching where and how the job failed.
func ErrorFlavor(stage Stage, kind services.ErrorKind, pick Picker) string {
	switch {
	case kind == services.KindTimeout && stage == StageExtract:
		return downloadTimeoutFlavor
	case kind == services.KindTimeout:
		return processingTimeoutFlavor
	case stage == StageValidate:
		return errorFlavors[0]
	case stage == StageFilter && kind == services.KindExternalTool:
		return errorFlavors[2]
	default:
		return pick.choose(errorFlavors)
	}
}

// SuccessFlavors exposes the success pool for callers that assert membership.
func SuccessFlavors() []string {
	return append([]string(nil), successFlavors...)
}

// ErrorFlavors exposes the failure pool.
func ErrorFlavors() []string {
	return append([]string(nil), errorFlavors...)
}
