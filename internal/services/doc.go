// Package services defines the error taxonomy shared across pipeline stages.
//
// Stage code tags failures with one of the exported sentinel errors so the
// lifecycle manager and the API layer can classify them without string
// matching: validation failures are rejected synchronously at submission,
// everything else is recorded on the failed job.
package services
