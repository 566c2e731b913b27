// Package tui is the interactive terminal host: a Bubbletea program
// that accepts tool arguments, streams job output into a viewport, and
// surfaces job lifecycle state.
package tui

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dcrane/ghostwriter/internal/command"
	"github.com/dcrane/ghostwriter/internal/event"
	"github.com/dcrane/ghostwriter/internal/job"
)

// App wraps the Bubbletea program and its event-bus bridge.
type App struct {
	program *tea.Program
	model   Model
	sink    *ProgramSink
	bus     *event.Bus
	subs    []string
}

// New creates a TUI application. The sink must be the same one the
// controller writes to; bus may be nil, which disables status updates.
func New(ctrl *job.Controller, sink *ProgramSink, bus *event.Bus, src command.BufferSource, title string) *App {
	return &App{
		model: NewModel(ctrl, sink, src, title),
		sink:  sink,
		bus:   bus,
	}
}

// NotifyConfigReload tells the running program that configuration was
// re-read from disk. Safe to call from any goroutine.
func (a *App) NotifyConfigReload() {
	if a.program != nil {
		a.program.Send(configReloadedMsg{})
	}
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
	)
	a.sink.Attach(a.program)
	a.subscribe()
	defer a.unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		if a.program != nil {
			a.program.Send(tea.Quit())
		}
	}()

	_, err := a.program.Run()
	return err
}

// subscribe bridges job lifecycle events into program messages.
func (a *App) subscribe() {
	if a.bus == nil {
		return
	}

	a.subs = append(a.subs,
		a.bus.Subscribe("job.started", func(ev event.Event) {
			e := ev.(event.JobStartedEvent)
			a.program.Send(jobStartedMsg{jobID: e.JobID, command: e.Command})
		}),
		a.bus.Subscribe("job.tick", func(ev event.Event) {
			e := ev.(event.JobTickEvent)
			a.program.Send(jobTickMsg{jobID: e.JobID, frame: e.Frame})
		}),
		a.bus.Subscribe("job.completed", func(ev event.Event) {
			e := ev.(event.JobCompletedEvent)
			a.program.Send(jobCompletedMsg{jobID: e.JobID, lines: e.Lines})
		}),
		a.bus.Subscribe("job.aborted", func(ev event.Event) {
			e := ev.(event.JobAbortedEvent)
			a.program.Send(jobAbortedMsg{jobID: e.JobID, exitCode: e.ExitCode, reason: e.Reason})
		}),
	)
}

func (a *App) unsubscribe() {
	for _, id := range a.subs {
		a.bus.Unsubscribe(id)
	}
	a.subs = nil
}
