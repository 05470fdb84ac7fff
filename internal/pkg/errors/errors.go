package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalTransition means the requested stage change violates the
	// stage graph. Caller bug; not retried.
	ErrIllegalTransition = errors.New("illegal stage transition")
	// ErrStaleVersion means the optimistic stage/version check failed.
	// Caller should re-read and retry.
	ErrStaleVersion = errors.New("stale document version")
	// ErrLockHeld means an unexpired lease exists for the document.
	ErrLockHeld = errors.New("lease held by another agent")
	// ErrLeaseExpired means the lease is gone or no longer owned by the
	// caller; it cannot be renewed.
	ErrLeaseExpired = errors.New("lease expired")
	// ErrDimensionMismatch means a vector's length does not match the
	// configured dimension for its model identity.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrAccessDenied means the agent is not an allowed writer for the
	// target stage.
	ErrAccessDenied = errors.New("agent not allowed to write stage")
)

// TransformFailure is returned by stage transforms. It is recorded in the
// document's error_info and moves the document to the error stage instead
// of crashing the driver.
type TransformFailure struct {
	Stage   string
	Message string
}

func (e *TransformFailure) Error() string {
	return fmt.Sprintf("stage %s transform failed: %s", e.Stage, e.Message)
}
