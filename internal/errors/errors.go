// Package errors provides centralized error definitions and error handling
// utilities for ghostwriter. It defines domain-specific errors, error
// constructors with context wrapping, and classification helpers.
//
// Creating errors:
//
//	err := errors.NewJobError("start", jobID, errors.ErrSpawn)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSpawn) { ... }
//
//	var jobErr *errors.JobError
//	if errors.As(err, &jobErr) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience. This allows
// callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Job-related sentinel errors
var (
	// ErrNoJob indicates that an operation requires a tracked job and none exists.
	ErrNoJob = New("no job tracked")
	// ErrSpawn indicates that the external tool could not be launched at all.
	ErrSpawn = New("failed to spawn external tool")
	// ErrKilled indicates that a job was terminated by a stop request or
	// context cancellation before it could finish.
	ErrKilled = New("job killed")
)

// Command-related sentinel errors
var (
	// ErrEmptyCommand indicates that an assembled command line was empty.
	ErrEmptyCommand = New("empty command")
	// ErrInvalidSelection indicates that a selection range could not be read
	// from the buffer source.
	ErrInvalidSelection = New("invalid selection range")
)

// JobError represents an error from the job lifecycle subsystem.
type JobError struct {
	// Op is the operation that failed (e.g. "start", "stop", "complete").
	Op string
	// JobID identifies the job, if known.
	JobID string
	// Err is the underlying error.
	Err error
}

// NewJobError creates a JobError wrapping the underlying error.
func NewJobError(op, jobID string, err error) *JobError {
	return &JobError{Op: op, JobID: jobID, Err: err}
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("job %s: %s: %v", e.JobID, e.Op, e.Err)
	}
	return fmt.Sprintf("job: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *JobError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from command assembly or execution.
type CommandError struct {
	// Command is the shell command line involved.
	Command string
	// Err is the underlying error.
	Err error
}

// NewCommandError creates a CommandError wrapping the underlying error.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsSpawnFailure reports whether err indicates the external tool never
// produced a process at all, as opposed to running and exiting nonzero.
func IsSpawnFailure(err error) bool {
	return Is(err, ErrSpawn)
}

// IsUserFacing reports whether err is safe and useful to surface to the
// host's notification channel rather than only to the debug log.
func IsUserFacing(err error) bool {
	return Is(err, ErrSpawn) ||
		Is(err, ErrKilled) ||
		Is(err, ErrEmptyCommand) ||
		Is(err, ErrInvalidSelection)
}
