package sched

import (
	"errors"
	"fmt"

	"github.com/signadot/pathstore/xpath"
)

var (
	// ErrCancelled settles a command that was cancelled before completing.
	ErrCancelled = errors.New("command cancelled")
	ErrClosed    = errors.New("loop closed")
)

// OperationError reports a command whose operation failed on every attempt.
type OperationError struct {
	ID       string
	Path     xpath.Path
	Attempts int
	Err      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("command %s on %s failed after %d attempt(s): %v", e.ID, e.Path, e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// ErrDuplicateID settles a command enqueued while another command with the
// same id is still pending or executing.
var ErrDuplicateID = errors.New("duplicate command id")
