package scheduler

import (
	"fmt"
	"time"

	"narrate/internal/script"
	"narrate/internal/services"
)

// Plan reconciles one synthesized clip against its fixed script window.
//
// Adjusted never exceeds the window: clips that fit play at natural speed,
// left-aligned to the window start; overlong clips are compressed by
// SpeedFactor up to the configured clamp. A clip that cannot be made to fit
// is a fit error, not a silent truncation.
type Plan struct {
	Index       int
	Utterance   script.Utterance
	ClipPath    string
	Window      time.Duration
	Natural     time.Duration
	SpeedFactor float64
	Adjusted    time.Duration
}

// ActiveStart returns the timeline position where the clip begins playing.
func (p Plan) ActiveStart() time.Duration {
	return p.Utterance.Start
}

// ActiveEnd returns the timeline position where the clip stops playing.
// This bounds the ducking window; it is the speed-adjusted end, not the
// script window end.
func (p Plan) ActiveEnd() time.Duration {
	return p.Utterance.Start + p.Adjusted
}

// fitTolerance absorbs rounding introduced by duration arithmetic on
// speed-adjusted clips.
const fitTolerance = 10 * time.Millisecond

// Fit computes the timing plan for one utterance given the natural duration
// reported for its synthesized clip. maxSpeed caps the allowed speed-up;
// requiring more fails with a fit error naming the utterance.
func Fit(index int, utt script.Utterance, clipPath string, natural time.Duration, maxSpeed float64) (Plan, error) {
	window := utt.Window()
	if window <= 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "plan", fmt.Sprintf("utterance %d", index), "window must be positive", nil)
	}
	if natural < 0 {
		return Plan{}, services.Wrap(services.ErrSynthesis, "plan", fmt.Sprintf("utterance %d", index), "clip has negative duration", nil)
	}
	if maxSpeed < 1 {
		maxSpeed = 1
	}

	plan := Plan{
		Index:     index,
		Utterance: utt,
		ClipPath:  clipPath,
		Window:    window,
		Natural:   natural,
	}

	if natural <= window {
		plan.SpeedFactor = 1.0
		plan.Adjusted = natural
		return plan, nil
	}

	factor := float64(natural) / float64(window)
	if factor > maxSpeed {
		return Plan{}, services.Wrap(
			services.ErrFit,
			"plan",
			fmt.Sprintf("utterance %d", index),
			fmt.Sprintf("clip of %.2fs needs %.2fx speed-up to fit %.2fs window (max %.2fx)",
				natural.Seconds(), factor, window.Seconds(), maxSpeed),
			nil,
		)
	}

	plan.SpeedFactor = factor
	plan.Adjusted = time.Duration(float64(natural) / factor)
	if plan.Adjusted > window+fitTolerance {
		return Plan{}, services.Wrap(
			services.ErrFit,
			"plan",
			fmt.Sprintf("utterance %d", index),
			fmt.Sprintf("adjusted clip %.3fs still exceeds window %.3fs", plan.Adjusted.Seconds(), window.Seconds()),
			nil,
		)
	}
	return plan, nil
}
