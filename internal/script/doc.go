// Package script models the timed narration script submitted by callers.
//
// A script is an ordered list of utterances, each owning a fixed window on the
// video timeline. Parsing accepts the wire form used by automation tools
// (MM:SS or HH:MM:SS timestamps); validation enforces positive windows,
// non-empty text, and non-overlapping ascending order.
package script
