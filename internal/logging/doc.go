// Package logging configures slog output for the daemon and CLI.
//
// It provides a compact console handler for interactive use, a JSON handler
// for machine consumption, and typed attribute helpers so call sites share
// consistent field names.
package logging
