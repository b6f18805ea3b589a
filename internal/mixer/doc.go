// Package mixer builds the ffmpeg filter_complex graph that blends
// narration clips over the original audio with ducking.
package mixer
