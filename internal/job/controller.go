package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dcrane/ghostwriter/internal/command"
	ghosterr "github.com/dcrane/ghostwriter/internal/errors"
	"github.com/dcrane/ghostwriter/internal/event"
	"github.com/dcrane/ghostwriter/internal/logging"
	"github.com/dcrane/ghostwriter/internal/runner"
)

// State represents the lifecycle state of the controller's tracked job.
type State int

const (
	// StateIdle indicates no job is active.
	StateIdle State = iota

	// StateStarting indicates a job is being spawned.
	StateStarting

	// StateRunning indicates the job's process is alive and the ticker
	// is animating.
	StateRunning

	// StateCompleting indicates the process has exited and its result is
	// being delivered.
	StateCompleting
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleting:
		return "completing"
	default:
		return "unknown"
	}
}

// Literal markers delivered to the sink on failure paths. Exported so
// hosts can match them.
const (
	// AbortedMarker is delivered when the tool ran but exited nonzero.
	// Stderr is discarded on this path; it is only surfaced when the
	// tool could not be started at all.
	AbortedMarker = "Aborted"

	// NoResponseMarker is delivered when no process was produced.
	NoResponseMarker = "Error: No response"
)

// Options configures a Controller. Zero values get sensible defaults.
type Options struct {
	// Notifier receives error-level notifications (synchronous path).
	Notifier Notifier

	// Insertion receives results on the synchronous path.
	Insertion InsertionSink

	// Formatter rewrites lines for non-plain target contexts.
	Formatter CommentFormatter

	// Bus receives job lifecycle events; nil disables publishing.
	Bus *event.Bus

	// Logger receives structured debug logs; nil means discard.
	Logger *logging.Logger

	// TickInterval is the progress re-render interval (default 1s).
	TickInterval time.Duration

	// TickLabel is the fixed text before the animated dots.
	TickLabel string

	// TickMaxDots is the dot count at which the animation wraps.
	TickMaxDots int
}

// Controller owns the single allowed concurrent job: it starts jobs,
// cancels them, and delivers their results. It is safe for concurrent
// use.
type Controller struct {
	run  *runner.Runner
	asm  *command.Assembler
	sink Sink

	notifier Notifier
	insert   InsertionSink
	format   CommentFormatter
	bus      *event.Bus
	logger   *logging.Logger

	tickInterval time.Duration
	tickLabel    string
	tickMaxDots  int

	// mu guards lifecycle state. It is never held across a Sink call,
	// so a sink that blocks (a busy UI loop handing off a message, a
	// slow terminal) cannot stall Stop, State, or Active.
	mu     sync.Mutex
	state  State
	handle *runner.Handle

	// sinkMu serializes all Sink calls. Lock order: sinkMu before mu,
	// never the reverse.
	sinkMu sync.Mutex

	// generation advances only in adopt; stale completions and ticks
	// compare against it and drop out.
	generation uint64

	jobSeq uint64
}

// New creates a Controller that executes through run, assembles
// commands with asm, and streams results into sink.
func New(run *runner.Runner, asm *command.Assembler, sink Sink, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.TickLabel == "" {
		opts.TickLabel = "Processing"
	}
	if opts.TickMaxDots < 1 {
		opts.TickMaxDots = 3
	}

	return &Controller{
		run:          run,
		asm:          asm,
		sink:         sink,
		notifier:     opts.Notifier,
		insert:       opts.Insertion,
		format:       opts.Formatter,
		bus:          opts.Bus,
		logger:       opts.Logger,
		tickInterval: opts.TickInterval,
		tickLabel:    opts.TickLabel,
		tickMaxDots:  opts.TickMaxDots,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a job is currently tracked.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Invoke dispatches an invocation to the synchronous or asynchronous
// path and returns the job ID.
func (c *Controller) Invoke(ctx context.Context, inv Invocation, src command.BufferSource) (string, error) {
	if inv.Synchronous {
		return c.RunSync(ctx, inv, src)
	}
	return c.Start(inv, src)
}

// Start launches an asynchronous job. It returns as soon as the process
// is spawned; the result is delivered to the Sink when the process
// exits. A spawn failure delivers the NoResponseMarker and returns an
// error wrapping errors.ErrSpawn.
//
// Starting while a job is active replaces the tracked handle (see the
// package documentation for this policy).
func (c *Controller) Start(inv Invocation, src command.BufferSource) (string, error) {
	spec := c.asm.Assemble(inv.RawArgs, src, inv.Selection, true)

	c.mu.Lock()
	c.jobSeq++
	jobID := fmt.Sprintf("job-%d", c.jobSeq)
	c.state = StateStarting
	c.mu.Unlock()

	logger := c.logger.WithJob(jobID)
	logger.Info("starting job", "command", spec.Command, "has_input", spec.HasInput)

	c.sinkMu.Lock()
	c.sink.EnsureVisible()
	c.sink.Reset()
	c.sinkMu.Unlock()

	// A fast process can exit before adoption finishes; the completion
	// callback waits for the generation assigned on adopt.
	adopted := make(chan uint64, 1)
	handle, err := c.run.Start(spec.Command, spec.Input, func(res runner.Result) {
		c.complete(<-adopted, jobID, res)
	})
	if err != nil {
		// The failed start never adopted anything: a still-tracked job
		// keeps its handle and generation, so its completion and its
		// state remain intact.
		c.mu.Lock()
		if c.handle != nil {
			c.state = StateRunning
		} else {
			c.state = StateIdle
		}
		c.mu.Unlock()

		c.sinkMu.Lock()
		c.deliver([]string{NoResponseMarker})
		c.sinkMu.Unlock()

		logger.Error("spawn failed", "error", err.Error())
		c.publish(event.NewJobAbortedEvent(jobID, -1, "no response"))
		return jobID, ghosterr.NewJobError("start", jobID, err)
	}

	c.mu.Lock()
	gen := c.adopt(handle, jobID)
	c.state = StateRunning
	c.mu.Unlock()
	adopted <- gen

	c.publish(event.NewJobStartedEvent(jobID, spec.Command, false))
	go c.runTicker(gen, jobID)

	return jobID, nil
}

// adopt records h as the tracked job handle and assigns its
// generation. This is the single decision point for the overlap
// policy: if a handle is already tracked, it is overwritten and the
// previous process is orphaned (it keeps running, but its completion
// arrives with a stale generation and can no longer reach the sink).
// The generation advances nowhere else, so a start that fails to spawn
// orphans nothing. Harden here to reject or queue instead. Callers
// hold c.mu.
func (c *Controller) adopt(h *runner.Handle, jobID string) uint64 {
	if c.handle != nil {
		c.logger.Warn("replacing tracked job handle, previous process orphaned",
			"job_id", jobID,
			"orphan_pid", c.handle.PID())
	}
	c.handle = h
	c.generation++
	return c.generation
}

// Stop sends a termination request to the tracked job's process. It is
// a no-op when no job is tracked. Stop does not transition state
// itself; the normal exit-detection path still fires and records the
// process's actual exit status, which surfaces as the AbortedMarker.
func (c *Controller) Stop() error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()

	if h == nil {
		return nil
	}

	c.logger.Info("stop requested", "pid", h.PID())
	return h.Kill()
}

// complete is the exit-detection path for asynchronous jobs. It runs on
// the runner's supervising goroutine, once per process. Holding sinkMu
// across the generation check and the delivery keeps a concurrent
// Start's Reset from interleaving with a stale delivery.
func (c *Controller) complete(gen uint64, jobID string, res runner.Result) {
	c.sinkMu.Lock()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.sinkMu.Unlock()
		c.logger.WithJob(jobID).Debug("ignoring completion of orphaned job",
			"exit_code", res.ExitCode)
		return
	}

	c.state = StateCompleting
	c.handle = nil
	c.mu.Unlock()

	var lines []string
	var ev event.Event
	switch {
	case !res.Started:
		lines = []string{NoResponseMarker}
		ev = event.NewJobAbortedEvent(jobID, -1, "no response")
	case res.ExitCode == 0:
		lines = res.StdoutLines()
		ev = event.NewJobCompletedEvent(jobID, len(lines))
	default:
		lines = []string{AbortedMarker}
		ev = event.NewJobAbortedEvent(jobID, res.ExitCode, "exit")
	}

	c.deliver(lines)

	c.mu.Lock()
	if gen == c.generation {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.sinkMu.Unlock()

	c.logger.WithJob(jobID).Info("job finished",
		"exit_code", res.ExitCode,
		"lines", len(lines))
	c.publish(ev)
}

// deliver writes the final result into the sink, overwriting any
// ticker residue: the last line is replaced with the first result line
// and the remainder appended. Callers hold c.sinkMu.
func (c *Controller) deliver(lines []string) {
	if len(lines) == 0 {
		c.sink.ReplaceLastLine("")
		return
	}
	c.sink.ReplaceLastLine(lines[0])
	if len(lines) > 1 {
		c.sink.AppendLines(lines[1:])
	}
}

// RunSync launches a job synchronously: the calling context blocks
// until the process exits. On success the output is handed to the
// InsertionSink (through the CommentFormatter for non-plain contexts);
// on nonzero exit the stderr text is raised verbatim through the
// Notifier and nothing is inserted.
func (c *Controller) RunSync(ctx context.Context, inv Invocation, src command.BufferSource) (string, error) {
	spec := c.asm.Assemble(inv.RawArgs, src, inv.Selection, false)

	c.mu.Lock()
	c.jobSeq++
	jobID := fmt.Sprintf("job-%d", c.jobSeq)
	c.mu.Unlock()

	logger := c.logger.WithJob(jobID)
	logger.Info("starting synchronous job", "command", spec.Command, "has_input", spec.HasInput)
	c.publish(event.NewJobStartedEvent(jobID, spec.Command, true))

	res, err := c.run.Run(ctx, spec.Command, spec.Input)
	if err != nil {
		if ghosterr.Is(err, ghosterr.ErrKilled) {
			c.notifyError("%s", AbortedMarker)
			logger.Warn("synchronous job killed", "exit_code", res.ExitCode)
			c.publish(event.NewJobAbortedEvent(jobID, res.ExitCode, "killed"))
			return jobID, ghosterr.NewJobError("run", jobID, err)
		}
		c.notifyError("%v", err)
		c.publish(event.NewJobAbortedEvent(jobID, -1, "no response"))
		return jobID, ghosterr.NewJobError("run", jobID, err)
	}

	if res.ExitCode != 0 {
		stderr := strings.TrimRight(res.Stderr, "\n")
		c.notifyError("%s", stderr)
		logger.Warn("synchronous job failed", "exit_code", res.ExitCode)
		c.publish(event.NewJobAbortedEvent(jobID, res.ExitCode, "exit"))
		return jobID, ghosterr.NewJobError("run", jobID,
			fmt.Errorf("tool exited with code %d", res.ExitCode))
	}

	lines := res.StdoutLines()
	if c.format != nil && !plainContext(inv.LanguageHint) {
		lines = c.format(lines, inv.LanguageHint)
	}

	if c.insert != nil {
		if err := c.insert.InsertAfterCursor(lines); err != nil {
			c.notifyError("failed to insert result: %v", err)
			return jobID, ghosterr.NewJobError("insert", jobID, err)
		}
	}

	logger.Info("synchronous job finished", "lines", len(lines))
	c.publish(event.NewJobCompletedEvent(jobID, len(lines)))
	return jobID, nil
}

// plainContext reports whether a language hint names a plain-text or
// markup context, which skips comment formatting.
func plainContext(hint string) bool {
	switch strings.ToLower(hint) {
	case "", "text", "txt", "markdown", "md", "plain":
		return true
	default:
		return false
	}
}

// runTicker drives the progress animation for one job generation.
func (c *Controller) runTicker(gen uint64, jobID string) {
	t := &Ticker{
		Interval: c.tickInterval,
		MaxDots:  c.tickMaxDots,
		Step: func(frame int) bool {
			return c.renderTick(gen, jobID, frame)
		},
	}
	t.Run()
}

// renderTick paints one animation frame. It returns false once the job
// generation is stale or the job left the running state, which makes
// the ticker decay without an explicit cancel.
func (c *Controller) renderTick(gen uint64, jobID string, frame int) bool {
	c.sinkMu.Lock()
	c.mu.Lock()
	active := gen == c.generation && c.state == StateRunning
	c.mu.Unlock()
	if !active {
		c.sinkMu.Unlock()
		return false
	}
	c.sink.ReplaceLastLine(c.tickLabel + strings.Repeat(".", frame))
	c.sinkMu.Unlock()

	c.publish(event.NewJobTickEvent(jobID, frame))
	return true
}

// publish sends an event if a bus is configured. Never called with c.mu
// held, so handlers may call back into the controller.
func (c *Controller) publish(ev event.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// notifyError raises an error notification if a notifier is configured.
func (c *Controller) notifyError(format string, args ...any) {
	if c.notifier != nil {
		c.notifier.Errorf(format, args...)
	}
}
