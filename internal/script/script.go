package script

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"narrate/internal/services"
)

// Utterance is one timed script line: a window on the video timeline and the
// text to be spoken inside it. Immutable once accepted.
type Utterance struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Window returns the utterance's window duration.
func (u Utterance) Window() time.Duration {
	return u.End - u.Start
}

// Script is an ordered sequence of utterances. Order defines playback order.
type Script []Utterance

// cue is the wire representation accepted from callers: timestamps in MM:SS
// or HH:MM:SS form, as produced by workflow tools.
type cue struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// Parse decodes a JSON-encoded ordered list of {start, end, text} cues.
// Decoding failures and malformed timestamps are validation errors.
func Parse(data []byte) (Script, error) {
	var cues []cue
	if err := json.Unmarshal(data, &cues); err != nil {
		return nil, services.Wrap(services.ErrValidation, "script", "parse", "invalid JSON", err)
	}
	out := make(Script, 0, len(cues))
	for i, c := range cues {
		start, err := ParseTimestamp(c.Start)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "script", fmt.Sprintf("line %d", i), "bad start timestamp", err)
		}
		end, err := ParseTimestamp(c.End)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "script", fmt.Sprintf("line %d", i), "bad end timestamp", err)
		}
		out = append(out, Utterance{Start: start, End: end, Text: c.Text})
	}
	return out, nil
}

// ParseTimestamp converts a MM:SS or HH:MM:SS string into a time offset.
func ParseTimestamp(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q must be MM:SS or HH:MM:SS", value)
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timestamp %q has invalid component %q", value, part)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// Validate checks the script against the submission contract: at least one
// utterance, each with a positive window and non-empty text, ordered and
// non-overlapping in time. Violations are validation errors raised before any
// job is created.
func (s Script) Validate() error {
	if len(s) == 0 {
		return services.Wrap(services.ErrValidation, "script", "", "script must contain at least one utterance", nil)
	}
	var prevEnd time.Duration
	for i, u := range s {
		line := fmt.Sprintf("line %d", i)
		if strings.TrimSpace(u.Text) == "" {
			return services.Wrap(services.ErrValidation, "script", line, "text must not be empty", nil)
		}
		if u.End <= u.Start {
			return services.Wrap(services.ErrValidation, "script", line, "end must be after start", nil)
		}
		if u.Start < prevEnd {
			return services.Wrap(services.ErrValidation, "script", line, "window overlaps previous utterance", nil)
		}
		prevEnd = u.End
	}
	return nil
}
