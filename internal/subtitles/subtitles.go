package subtitles

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"narrate/internal/config"
	"narrate/internal/script"
)

// FormatSRT renders the script as SRT cues. Cues use the original script
// windows so captions stay on screen for the full window even when the
// audio was speed-adjusted.
func FormatSRT(s script.Script) string {
	var b strings.Builder
	for i, utt := range s {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(utt.Start), formatTimestamp(utt.End))
		b.WriteString(norm.NFC.String(strings.TrimSpace(utt.Text)))
		b.WriteString("\n\n")
	}
	return b.String()
}

// WriteSRT writes the script's cues to path.
func WriteSRT(path string, s script.Script) error {
	if err := os.WriteFile(path, []byte(FormatSRT(s)), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

// Style renders the force_style argument from the configured caption
// constants. BorderStyle, Shadow and Alignment are fixed: opaque outline
// text, bottom centered.
func Style(cfg config.Subtitles) string {
	return fmt.Sprintf(
		"Fontname=%s,FontSize=%d,PrimaryColour=%s,OutlineColour=%s,BorderStyle=1,Outline=%d,Shadow=0,Alignment=2,MarginV=%d",
		cfg.FontName, cfg.FontSize, cfg.PrimaryColour, cfg.OutlineColour, cfg.Outline, cfg.MarginV,
	)
}

// BurnInFilter returns the subtitles filter spec for the given cue file,
// without stream labels. The path is escaped for ffmpeg filter syntax.
func BurnInFilter(srtPath string, style string) string {
	return fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(srtPath), style)
}

// escapeFilterPath quotes a filesystem path for use inside a filter
// argument. Backslashes become forward slashes and colons are escaped, which
// also keeps Windows drive letters intact.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, "/")
	return strings.ReplaceAll(escaped, ":", `\:`)
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	millis := (d - seconds*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
