// Package render drives ffmpeg to encode the final narrated artifact and
// verifies the result before promoting it to the output directory.
package render
