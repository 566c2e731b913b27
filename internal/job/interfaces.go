package job

import "github.com/dcrane/ghostwriter/internal/command"

// Sink is the display surface results stream into. Hosts implement it;
// the controller and ticker are its only callers, and they serialize
// every call, so implementations do not need their own locking for
// correctness (though they may lock for their own readers).
type Sink interface {
	// EnsureVisible makes the display surface visible to the user.
	EnsureVisible()

	// Reset clears the sink's content. Called at invocation start.
	Reset()

	// AppendLines appends lines to the end of the sink, in order.
	AppendLines(lines []string)

	// ReplaceLastLine replaces the sink's final line, creating it if the
	// sink is empty. The ticker and terminal status markers use this, so
	// it must target whatever the current last line is, not a cached
	// position.
	ReplaceLastLine(text string)
}

// Notifier carries error-level notifications to the host. Used on the
// synchronous path, where there is no sink to write markers into.
type Notifier interface {
	// Errorf raises an error-level notification.
	Errorf(format string, args ...any)
}

// InsertionSink receives results on the synchronous path for direct
// insertion at the host's cursor.
type InsertionSink interface {
	// InsertAfterCursor inserts lines after the host's cursor position.
	InsertAfterCursor(lines []string) error
}

// CommentFormatter rewrites result lines for a non-plain-text target
// context (e.g. wrapping prose in comment syntax for a code buffer).
// The formatter is host-provided; the controller knows nothing about
// comment syntax.
type CommentFormatter func(lines []string, languageHint string) []string

// Invocation is one request from the host command layer.
type Invocation struct {
	// RawArgs is the user's argument string, before token expansion.
	RawArgs string

	// Synchronous selects the blocking path: the caller waits for the
	// process and the result goes to the InsertionSink, not the Sink.
	Synchronous bool

	// Selection optionally names a buffer line range to pipe to the
	// tool's stdin.
	Selection *command.Selection

	// LanguageHint names the target context for synchronous insertion.
	// Plain-text and markup hints skip comment formatting.
	LanguageHint string
}
