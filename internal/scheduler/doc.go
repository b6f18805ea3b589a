// Package scheduler reconciles variable-duration synthesized speech against
// the fixed time windows declared in the script.
package scheduler
