// Package pipeline runs narration jobs from the queue through acquisition,
// synthesis, planning, mixing and final encode.
package pipeline
