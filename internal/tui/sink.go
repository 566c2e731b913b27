package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgramSink is the job controller's output sink for the TUI host. It
// keeps its own line store and nudges the Bubbletea program with a
// sinkChangedMsg after each mutation; the model re-renders from a
// snapshot. Mutations arrive serialized from the controller, but the
// model reads from the program goroutine, so access is locked.
type ProgramSink struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
	visible  bool
	send     func(tea.Msg)
}

// NewProgramSink creates a sink retaining at most maxLines lines; older
// lines are dropped from the top. maxLines <= 0 means unbounded.
func NewProgramSink(maxLines int) *ProgramSink {
	return &ProgramSink{maxLines: maxLines}
}

// Attach connects the sink to a running program. Mutations before
// Attach are retained and picked up on the model's first render.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

// EnsureVisible marks the output surface as shown.
func (s *ProgramSink) EnsureVisible() {
	s.mu.Lock()
	s.visible = true
	send := s.send
	s.mu.Unlock()
	notify(send)
}

// Reset clears all retained lines.
func (s *ProgramSink) Reset() {
	s.mu.Lock()
	s.lines = nil
	send := s.send
	s.mu.Unlock()
	notify(send)
}

// AppendLines appends lines in order, trimming from the top past the
// retention cap.
func (s *ProgramSink) AppendLines(lines []string) {
	s.mu.Lock()
	s.lines = append(s.lines, lines...)
	if s.maxLines > 0 && len(s.lines) > s.maxLines {
		s.lines = s.lines[len(s.lines)-s.maxLines:]
	}
	send := s.send
	s.mu.Unlock()
	notify(send)
}

// ReplaceLastLine replaces the final line, creating it if the sink is
// empty.
func (s *ProgramSink) ReplaceLastLine(text string) {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.lines = []string{text}
	} else {
		s.lines[len(s.lines)-1] = text
	}
	send := s.send
	s.mu.Unlock()
	notify(send)
}

// Lines returns a snapshot of the retained lines.
func (s *ProgramSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Visible reports whether EnsureVisible has been called.
func (s *ProgramSink) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// notify nudges the program outside the sink lock; Send can block until
// the program's receive loop drains.
func notify(send func(tea.Msg)) {
	if send != nil {
		send(sinkChangedMsg{})
	}
}
