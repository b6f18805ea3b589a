package mixer

import (
	"strings"
	"testing"
	"time"

	"narrate/internal/scheduler"
	"narrate/internal/script"
)

func plan(index int, start, natural time.Duration, factor float64) scheduler.Plan {
	adjusted := time.Duration(float64(natural) / factor)
	return scheduler.Plan{
		Index:       index,
		Utterance:   script.Utterance{Start: start, End: start + 10*time.Second, Text: "x"},
		ClipPath:    "/tmp/clip.mp3",
		Natural:     natural,
		SpeedFactor: factor,
		Adjusted:    adjusted,
	}
}

func defaultOptions() Options {
	return Options{DuckLevel: 0.2, Fade: 50 * time.Millisecond, SourceHasAudio: true}
}

func TestBuildSingleClipGraph(t *testing.T) {
	plans := []scheduler.Plan{plan(0, 5*time.Second, 2*time.Second, 1.0)}

	graph := Build(plans, defaultOptions(), "")

	if graph.AudioLabel != "[aout]" {
		t.Fatalf("audio label = %q, want [aout]", graph.AudioLabel)
	}
	if graph.VideoLabel != "0:v" {
		t.Fatalf("video label = %q, want passthrough 0:v", graph.VideoLabel)
	}
	if !strings.Contains(graph.FilterComplex, "[1:a]adelay=5000|5000[spk0]") {
		t.Fatalf("clip chain missing adelay: %s", graph.FilterComplex)
	}
	if strings.Contains(graph.FilterComplex, "atempo") {
		t.Fatalf("natural speed clip must not get atempo: %s", graph.FilterComplex)
	}
	if !strings.Contains(graph.FilterComplex, "amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]") {
		t.Fatalf("amix stage malformed: %s", graph.FilterComplex)
	}
	if !strings.Contains(graph.FilterComplex, "volume='") || !strings.Contains(graph.FilterComplex, ":eval=frame[bg]") {
		t.Fatalf("ducking stage malformed: %s", graph.FilterComplex)
	}
}

func TestBuildAppliesAtempoForSpedUpClips(t *testing.T) {
	plans := []scheduler.Plan{plan(0, 0, 6*time.Second, 1.5)}

	graph := Build(plans, defaultOptions(), "")

	if !strings.Contains(graph.FilterComplex, "atempo=1.500000,adelay=0|0[spk0]") {
		t.Fatalf("expected atempo before adelay: %s", graph.FilterComplex)
	}
}

func TestBuildSubtitleChain(t *testing.T) {
	plans := []scheduler.Plan{plan(0, 0, time.Second, 1.0)}

	graph := Build(plans, defaultOptions(), "subtitles='/tmp/cues.srt'")

	if graph.VideoLabel != "[vout]" {
		t.Fatalf("video label = %q, want [vout]", graph.VideoLabel)
	}
	if !strings.Contains(graph.FilterComplex, "[0:v]subtitles='/tmp/cues.srt'[vout]") {
		t.Fatalf("subtitle chain malformed: %s", graph.FilterComplex)
	}
}

func TestBuildSilentSourceMixesClipsAlone(t *testing.T) {
	opts := defaultOptions()
	opts.SourceHasAudio = false
	plans := []scheduler.Plan{plan(0, 0, time.Second, 1.0)}

	graph := Build(plans, opts, "")

	if strings.Contains(graph.FilterComplex, "[bg]") {
		t.Fatalf("silent source must not reference a background chain: %s", graph.FilterComplex)
	}
	if !strings.Contains(graph.FilterComplex, "amix=inputs=1:duration=longest") {
		t.Fatalf("silent source amix malformed: %s", graph.FilterComplex)
	}
}

func TestDuckExpressionWindowBounds(t *testing.T) {
	plans := []scheduler.Plan{plan(0, 5*time.Second, 2*time.Second, 1.0)}

	expr := duckExpression(plans, defaultOptions())

	// Duck holds over the clip's adjusted play range, not the script window.
	if !strings.Contains(expr, "between(t,5.000,7.000),0.2000") {
		t.Fatalf("duck window wrong: %s", expr)
	}
	// Ramps extend one fade beyond each edge.
	if !strings.Contains(expr, "between(t,4.950,7.050)") {
		t.Fatalf("ramp bounds wrong: %s", expr)
	}
	if !strings.HasSuffix(expr, ",1)") {
		t.Fatalf("expression must fall through to unity gain: %s", expr)
	}
}

func TestDuckExpressionLaterClipTakesPriority(t *testing.T) {
	plans := []scheduler.Plan{
		plan(0, 1*time.Second, 2*time.Second, 1.0),
		plan(1, 4*time.Second, 2*time.Second, 1.0),
	}

	expr := duckExpression(plans, defaultOptions())

	// The later-starting window must be the outermost branch.
	first := strings.Index(expr, "between(t,3.950,6.050)")
	second := strings.Index(expr, "between(t,0.950,3.050)")
	if first == -1 || second == -1 {
		t.Fatalf("expected both ramp windows in expression: %s", expr)
	}
	if first > second {
		t.Fatalf("later clip must be evaluated first: %s", expr)
	}
}

func TestDuckExpressionHoldsDuckAcrossTouchingWindows(t *testing.T) {
	// Clip 0 plays [0,5s] after a 2x speed-up, clip 1 starts right at 5s.
	plans := []scheduler.Plan{
		plan(0, 0, 10*time.Second, 2.0),
		plan(1, 5*time.Second, 2*time.Second, 1.0),
	}

	expr := duckExpression(plans, defaultOptions())

	if !strings.Contains(expr, "between(t,0.000,7.000),0.2000") {
		t.Fatalf("touching windows must duck as one region: %s", expr)
	}
	// No ramp may open at the 5s seam; the gain stays at the duck level.
	if strings.Contains(expr, "4.950") || strings.Contains(expr, "5.050") {
		t.Fatalf("unexpected ramp at the window seam: %s", expr)
	}
}

func TestDuckExpressionMergesNarrowGaps(t *testing.T) {
	// A 60ms gap is shorter than release plus attack (100ms): keep ducking.
	plans := []scheduler.Plan{
		plan(0, 0, 2*time.Second, 1.0),
		plan(1, 2060*time.Millisecond, time.Second, 1.0),
	}

	expr := duckExpression(plans, defaultOptions())

	if !strings.Contains(expr, "between(t,0.000,3.060),0.2000") {
		t.Fatalf("narrow gap must stay ducked: %s", expr)
	}
}

func TestDuckExpressionZeroFade(t *testing.T) {
	opts := defaultOptions()
	opts.Fade = 0
	plans := []scheduler.Plan{plan(0, 2*time.Second, time.Second, 1.0)}

	expr := duckExpression(plans, opts)

	if expr != "if(between(t,2.000,3.000),0.2000,1)" {
		t.Fatalf("zero fade expression wrong: %s", expr)
	}
}

func TestBuildNoPlansPassthrough(t *testing.T) {
	graph := Build(nil, defaultOptions(), "")

	if graph.FilterComplex != "" || graph.AudioLabel != "0:a" || graph.VideoLabel != "0:v" {
		t.Fatalf("empty plan set must pass streams through: %+v", graph)
	}
}
