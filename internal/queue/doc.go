// Package queue persists narration jobs in SQLite and owns the job state
// machine.
//
// Jobs move queued → processing → completed|failed and never regress. The
// store provides the single-winner Claim edge used by the workflow manager,
// so exactly one execution runs per job even with concurrent workers. Single
// UPDATE statements under WAL keep status reads untorn.
package queue
