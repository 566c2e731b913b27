// Package event defines event types for decoupling components in
// ghostwriter. The job controller publishes lifecycle events here so
// display hosts can react without a direct dependency on the controller.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "job.started", "job.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// JobStartedEvent is emitted when a job's subprocess has been spawned.
type JobStartedEvent struct {
	baseEvent
	JobID       string // Unique identifier for the job
	Command     string // Shell command line being executed
	Synchronous bool   // Whether the caller is blocking on the result
}

// NewJobStartedEvent creates a JobStartedEvent.
func NewJobStartedEvent(jobID, command string, synchronous bool) JobStartedEvent {
	return JobStartedEvent{
		baseEvent:   newBaseEvent("job.started"),
		JobID:       jobID,
		Command:     command,
		Synchronous: synchronous,
	}
}

// JobCompletedEvent is emitted when a job's subprocess exited with code 0
// and its output has been delivered.
type JobCompletedEvent struct {
	baseEvent
	JobID string // Unique identifier for the job
	Lines int    // Number of output lines delivered
}

// NewJobCompletedEvent creates a JobCompletedEvent.
func NewJobCompletedEvent(jobID string, lines int) JobCompletedEvent {
	return JobCompletedEvent{
		baseEvent: newBaseEvent("job.completed"),
		JobID:     jobID,
		Lines:     lines,
	}
}

// JobAbortedEvent is emitted when a job ended without usable output:
// nonzero exit, kill, or spawn failure.
type JobAbortedEvent struct {
	baseEvent
	JobID    string // Unique identifier for the job
	ExitCode int    // Process exit code; -1 if no process was produced
	Reason   string // Reason for the abort (e.g., "exit", "no response")
}

// NewJobAbortedEvent creates a JobAbortedEvent.
func NewJobAbortedEvent(jobID string, exitCode int, reason string) JobAbortedEvent {
	return JobAbortedEvent{
		baseEvent: newBaseEvent("job.aborted"),
		JobID:     jobID,
		ExitCode:  exitCode,
		Reason:    reason,
	}
}

// JobTickEvent is emitted on each progress ticker frame while a job runs.
type JobTickEvent struct {
	baseEvent
	JobID string // Unique identifier for the job
	Frame int    // Current animation frame (1-based)
}

// NewJobTickEvent creates a JobTickEvent.
func NewJobTickEvent(jobID string, frame int) JobTickEvent {
	return JobTickEvent{
		baseEvent: newBaseEvent("job.tick"),
		JobID:     jobID,
		Frame:     frame,
	}
}
