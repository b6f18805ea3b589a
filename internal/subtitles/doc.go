// Package subtitles generates SRT cue files from the narration script and
// the ffmpeg filter spec that burns them into the frame stream.
package subtitles
