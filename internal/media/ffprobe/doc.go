// Package ffprobe wraps the ffprobe executable for media inspection.
//
// The pipeline uses it to measure synthesized clip durations, to read the
// source video duration, and to verify the final artifact before a job is
// marked completed.
package ffprobe
