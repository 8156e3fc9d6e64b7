package jobs_test

import (
	"slices"
	"testing"

	"nightcore/internal/jobs"
	"nightcore/internal/services"
)

func TestSuccessFlavorUsesPicker(t *testing.T) {
	pool := jobs.SuccessFlavors()
	for i := range pool {
		got := jobs.SuccessFlavor(func(int) int { return i })
		if got != pool[i] {
			t.Fatalf("pick %d = %q, want %q", i, got, pool[i])
		}
	}
	if got := jobs.SuccessFlavor(func(int) int { return 99 }); got != pool[0] {
		t.Fatalf("out-of-range pick should clamp to first entry, got %q", got)
	}
	if got := jobs.SuccessFlavor(nil); !slices.Contains(pool, got) {
		t.Fatalf("random pick %q not in pool", got)
	}
}

func TestErrorFlavorByStageAndKind(t *testing.T) {
	first := func(int) int { return 1 }
	if got := jobs.ErrorFlavor(jobs.StageExtract, services.KindTimeout, first); got != "Download timed out. Maybe your internet is still on dial-up?" {
		t.Fatalf("unexpected download timeout flavor %q", got)
	}
	if got := jobs.ErrorFlavor(jobs.StageFilter, services.KindTimeout, first); got != "Processing timed out. This song is probably too long for me to care." {
		t.Fatalf("unexpected processing timeout flavor %q", got)
	}
	if got := jobs.ErrorFlavor(jobs.StageValidate, services.KindValidation, first); got != "Your URL is as broken as my dreams." {
		t.Fatalf("unexpected validation flavor %q", got)
	}
	if got := jobs.ErrorFlavor(jobs.StageFilter, services.KindExternalTool, first); got != "FFmpeg threw a tantrum. Maybe give it a better input next time?" {
		t.Fatalf("unexpected ffmpeg flavor %q", got)
	}
	if got := jobs.ErrorFlavor(jobs.StageExtract, services.KindExternalTool, first); got != jobs.ErrorFlavors()[1] {
		t.Fatalf("expected picker to choose from error pool, got %q", got)
	}
}
