package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dcrane/ghostwriter/internal/command"
	"github.com/dcrane/ghostwriter/internal/job"
)

// Model holds the TUI application state.
type Model struct {
	ctrl  *job.Controller
	sink  *ProgramSink
	src   command.BufferSource
	title string

	input    textinput.Model
	viewport viewport.Model

	width  int
	height int
	ready  bool

	status    string
	statusBad bool
	quitting  bool
}

// NewModel creates a TUI model driving ctrl and rendering sink. src
// supplies buffer context for token expansion and may be nil.
func NewModel(ctrl *job.Controller, sink *ProgramSink, src command.BufferSource, title string) Model {
	ti := textinput.New()
	ti.Placeholder = "arguments for the tool (enter to run)"
	ti.Prompt = promptStyle.Render("> ")
	ti.Focus()

	if title == "" {
		title = "ghostwriter"
	}

	return Model{
		ctrl:   ctrl,
		sink:   sink,
		src:    src,
		title:  title,
		input:  ti,
		status: "idle",
	}
}

// Init kicks off the input cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		m.ready = true
		m.refreshOutput()
		return m, nil

	case sinkChangedMsg:
		m.refreshOutput()
		return m, nil

	case jobStartedMsg:
		m.status = fmt.Sprintf("running %s", msg.command)
		m.statusBad = false
		return m, nil

	case jobTickMsg:
		// The animated line lives in the sink; the status just tracks
		// that work is ongoing.
		return m, nil

	case jobCompletedMsg:
		m.status = fmt.Sprintf("done (%d lines)", msg.lines)
		m.statusBad = false
		return m, nil

	case jobAbortedMsg:
		if msg.exitCode >= 0 {
			m.status = fmt.Sprintf("aborted (exit %d)", msg.exitCode)
		} else {
			m.status = "no response from tool"
		}
		m.statusBad = true
		return m, nil

	case configReloadedMsg:
		m.status = "configuration reloaded"
		m.statusBad = false
		return m, nil

	case errMsg:
		m.status = msg.err.Error()
		m.statusBad = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		_ = m.ctrl.Stop()
		return m, tea.Quit

	case "ctrl+s":
		if err := m.ctrl.Stop(); err != nil {
			m.status = err.Error()
			m.statusBad = true
		}
		return m, nil

	case "enter":
		raw := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		return m, m.startJob(raw)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startJob launches an asynchronous job off the program goroutine so a
// slow spawn never blocks rendering. Failures come back as errMsg.
func (m Model) startJob(raw string) tea.Cmd {
	ctrl, src := m.ctrl, m.src
	return func() tea.Msg {
		if _, err := ctrl.Start(job.Invocation{RawArgs: raw}, src); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *Model) resizeViewport() {
	// Title, status, prompt, help, and the output border eat rows.
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	if !m.ready {
		m.viewport = viewport.New(w, h)
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
}

func (m *Model) refreshOutput() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.sink.Lines(), "\n"))
	m.viewport.GotoBottom()
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	statusStyle := statusIdleStyle
	switch {
	case m.statusBad:
		statusStyle = statusErrorStyle
	case strings.HasPrefix(m.status, "running"):
		statusStyle = statusRunningStyle
	case strings.HasPrefix(m.status, "done"):
		statusStyle = statusDoneStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(outputStyle.Width(m.viewport.Width).Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: run  ctrl+s: stop  ctrl+c: quit"))
	return b.String()
}
