package mixer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"narrate/internal/scheduler"
)

// Options controls how the narration track is blended over the original
// audio.
type Options struct {
	// DuckLevel is the fraction of original volume kept while a clip plays.
	DuckLevel float64
	// Fade is the linear attack/release ramp at each ducking window edge.
	Fade time.Duration
	// SourceHasAudio reports whether input 0 carries an audio stream. When
	// false the graph mixes narration clips alone.
	SourceHasAudio bool
}

// Graph is an assembled filter_complex script with its output stream labels.
// Input 0 is the source video; inputs 1..N are the narration clips in plan
// order.
type Graph struct {
	FilterComplex string
	VideoLabel    string
	AudioLabel    string
}

// speedEpsilon below which a clip is treated as natural speed and atempo is
// omitted.
const speedEpsilon = 0.001

// Build assembles the mixing graph for the given plans. subtitleFilter, when
// non-empty, is chained onto the video stream; pass the output of the
// subtitles package or "" to leave the frames untouched.
func Build(plans []scheduler.Plan, opts Options, subtitleFilter string) Graph {
	graph := Graph{VideoLabel: "0:v", AudioLabel: "0:a"}

	var filters []string
	if subtitleFilter != "" {
		filters = append(filters, fmt.Sprintf("[0:v]%s[vout]", subtitleFilter))
		graph.VideoLabel = "[vout]"
	}

	if len(plans) > 0 {
		var mixInputs []string
		if opts.SourceHasAudio {
			filters = append(filters, fmt.Sprintf("[0:a]volume='%s':eval=frame[bg]", duckExpression(plans, opts)))
			mixInputs = append(mixInputs, "[bg]")
		}
		for i, plan := range plans {
			label := fmt.Sprintf("[spk%d]", i)
			filters = append(filters, clipChain(i+1, plan, label))
			mixInputs = append(mixInputs, label)
		}
		duration := "first"
		if !opts.SourceHasAudio {
			duration = "longest"
		}
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=%s:dropout_transition=0:normalize=0[aout]",
			strings.Join(mixInputs, ""), len(mixInputs), duration))
		graph.AudioLabel = "[aout]"
	}

	graph.FilterComplex = strings.Join(filters, ";")
	return graph
}

// clipChain positions one narration clip on the timeline: atempo compresses
// overlong clips, adelay shifts the result to the window start.
func clipChain(input int, plan scheduler.Plan, label string) string {
	stages := []string{}
	if plan.SpeedFactor > 1+speedEpsilon {
		stages = append(stages, fmt.Sprintf("atempo=%s", formatFloat(plan.SpeedFactor, 6)))
	}
	delay := plan.ActiveStart().Milliseconds()
	stages = append(stages, fmt.Sprintf("adelay=%d|%d", delay, delay))
	return fmt.Sprintf("[%d:a]%s%s", input, strings.Join(stages, ","), label)
}

// duckExpression builds the per-frame gain for the original audio: the duck
// level inside each clip's active window, ramping linearly over the fade at
// the edges, unity elsewhere. Windows separated by less than an attack plus a
// release are merged first, so the gain holds at the duck level across the
// seam instead of ramping back toward unity between back-to-back clips.
func duckExpression(plans []scheduler.Plan, opts Options) string {
	gain := formatFloat(opts.DuckLevel, 4)
	ramp := opts.Fade.Seconds()

	expr := "1"
	for _, w := range mergeWindows(plans, 2*ramp) {
		if ramp <= 0 {
			expr = fmt.Sprintf("if(between(t,%s,%s),%s,%s)",
				formatSeconds(w.start), formatSeconds(w.end), gain, expr)
			continue
		}
		rampStr := formatSeconds(ramp)
		inner := fmt.Sprintf("if(between(t,%s,%s),%s,if(lt(t,%s),1-(1-%s)*(t-%s)/%s,%s+(1-%s)*(t-%s)/%s))",
			formatSeconds(w.start), formatSeconds(w.end), gain,
			formatSeconds(w.start),
			gain, formatSeconds(w.start-ramp), rampStr,
			gain, gain, formatSeconds(w.end), rampStr)
		expr = fmt.Sprintf("if(between(t,%s,%s),%s,%s)",
			formatSeconds(w.start-ramp), formatSeconds(w.end+ramp), inner, expr)
	}
	return expr
}

type duckWindow struct {
	start float64
	end   float64
}

// mergeWindows returns the active clip windows in ascending start order,
// collapsing any neighbors closer together than minGap. The result is a set
// of disjoint ducked regions whose fade ramps cannot overlap.
func mergeWindows(plans []scheduler.Plan, minGap float64) []duckWindow {
	windows := make([]duckWindow, 0, len(plans))
	for _, plan := range plans {
		windows = append(windows, duckWindow{
			start: plan.ActiveStart().Seconds(),
			end:   plan.ActiveEnd().Seconds(),
		})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	merged := make([]duckWindow, 0, len(windows))
	for _, w := range windows {
		if n := len(merged); n > 0 && w.start-merged[n-1].end < minGap {
			if w.end > merged[n-1].end {
				merged[n-1].end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func formatSeconds(v float64) string {
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
