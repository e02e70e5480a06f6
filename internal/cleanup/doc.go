// Package cleanup decides which workspaces of a job may be reclaimed across the
// fleet and deletes them.
//
// A run has three stages:
//
//   - Calculator.Compute builds the candidate set from the job's label
//     membership and its build history, then subtracts every workspace that
//     history shows as in use, every node that history cannot vouch for, and the
//     node the current build runs on.
//   - ExclusionEngine.Filter drops whole nodes that match a skip pattern or are
//     administratively opted out.
//   - Executor.Execute deletes what is left, one node at a time or one pool task
//     per node, optionally under a deadline.
//
// Orchestrator ties the stages together and always logs a start and end banner.
//
// Failure handling:
//   - A failed delete is logged and counted; the sweep continues.
//   - A node that vanished between calculation and execution is skipped.
//   - A deadline produces OutcomeTimedOut, not an error.
//   - Cancellation of the caller's context cancels every in-flight node task and
//     is returned as an error wrapping ErrCancelled.
package cleanup

import (
	"errors"
	"fmt"

	"github.com/zeebo/errs"
)

// Error is the error class for cleanup engine failures.
var Error = errs.Class("cleanup")

var (
	// ErrCancelled is wrapped into the error returned when the caller's
	// context ends while a run is in flight.
	ErrCancelled = errors.New("cleanup cancelled")
	// ErrTimedOut is returned by RunWithTimeout when the deadline passes.
	ErrTimedOut = errors.New("cleanup timed out")
)

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
