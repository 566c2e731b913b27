// Package runner spawns and supervises the external text-generation tool.
//
// Every command is executed through shell indirection ("sh -c <command>")
// rather than direct argv exec, so assembled command strings may contain
// pipes and redirection. A command can be run synchronously, blocking
// until exit, or asynchronously, returning a live Handle and invoking a
// completion callback exactly once when the process exits.
package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dcrane/ghostwriter/internal/capture"
	ghosterr "github.com/dcrane/ghostwriter/internal/errors"
	"github.com/dcrane/ghostwriter/internal/logging"
)

// Result is the outcome of one subprocess invocation.
type Result struct {
	// Started reports whether a process was produced at all. False means
	// the tool could not be launched or communicated with; the other
	// fields are meaningless in that case.
	Started bool

	// ExitCode is the process exit code. Processes killed by a signal
	// report 128 plus the signal number, following shell convention.
	ExitCode int

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string
}

// StdoutLines returns stdout split into lines, without a trailing empty
// line for a final newline. Empty stdout yields nil.
func (r Result) StdoutLines() []string {
	return capture.SplitLines(r.Stdout)
}

// Runner executes shell commands for the job controller.
type Runner struct {
	shell     string
	bufSize   int
	killGrace time.Duration
	logger    *logging.Logger
}

// New creates a Runner. shell is the interpreter used for command
// indirection (empty means /bin/sh); bufSize caps per-stream capture;
// killGrace is how long Kill waits after SIGTERM before SIGKILL.
func New(shell string, bufSize int, killGrace time.Duration, logger *logging.Logger) *Runner {
	if shell == "" {
		shell = "/bin/sh"
	}
	if bufSize <= 0 {
		bufSize = 256 * 1024
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		shell:     shell,
		bufSize:   bufSize,
		killGrace: killGrace,
		logger:    logger,
	}
}

// Start spawns command asynchronously and returns a live Handle
// immediately. If onDone is non-nil it is invoked exactly once, from the
// supervising goroutine, when the process exits. A spawn failure returns
// an error wrapping errors.ErrSpawn and no Handle.
func (r *Runner) Start(command, input string, onDone func(Result)) (*Handle, error) {
	cmd := exec.Command(r.shell, "-c", command)

	// Own process group so Kill can take down shell descendants too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	stdout := capture.NewRingBuffer(r.bufSize)
	stderr := capture.NewRingBuffer(r.bufSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		r.logger.Error("failed to spawn external tool",
			"command", command,
			"error", err.Error())
		return nil, ghosterr.NewCommandError(command, fmt.Errorf("%w: %v", ghosterr.ErrSpawn, err))
	}

	h := &Handle{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		killGrace: r.killGrace,
		done:      make(chan struct{}),
		logger:    r.logger,
	}

	r.logger.Debug("external tool spawned",
		"command", command,
		"pid", h.PID(),
		"has_input", input != "")

	go h.wait(onDone)
	return h, nil
}

// Run spawns command and blocks until it exits, returning the full
// Result. If ctx is canceled first, the process is killed and Run
// returns the reaped Result with an error wrapping errors.ErrKilled.
// A spawn failure returns a Result with Started == false and an error
// wrapping errors.ErrSpawn.
func (r *Runner) Run(ctx context.Context, command, input string) (Result, error) {
	h, err := r.Start(command, input, nil)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		_ = h.Kill()
		<-h.Done()
		res, _ := h.Result()
		return res, fmt.Errorf("%w: %v", ghosterr.ErrKilled, ctx.Err())
	}

	res, _ := h.Result()
	return res, nil
}

// Handle tracks one live asynchronous invocation.
type Handle struct {
	cmd       *exec.Cmd
	stdout    *capture.RingBuffer
	stderr    *capture.RingBuffer
	killGrace time.Duration
	logger    *logging.Logger

	done chan struct{}

	mu     sync.Mutex
	result Result
	exited bool
}

// PID returns the process ID, or -1 if unavailable.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return -1
	}
	return h.cmd.Process.Pid
}

// Done returns a channel closed when the process has exited and the
// completion callback has been invoked.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the invocation outcome. ok is false until the process
// has exited.
func (h *Handle) Result() (res Result, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.exited
}

// Kill requests termination of the process group: SIGTERM first, then
// SIGKILL if the process is still alive after the grace period. Kill is
// best-effort and idempotent; calling it after exit is a no-op. The
// normal exit-detection path still reports the final status.
func (h *Handle) Kill() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	pid := h.PID()
	if pid <= 0 {
		return ghosterr.ErrNoJob
	}

	if h.killGrace <= 0 {
		return h.signalGroup(pid, syscall.SIGKILL)
	}

	if err := h.signalGroup(pid, syscall.SIGTERM); err != nil {
		return err
	}

	go func() {
		select {
		case <-h.done:
		case <-time.After(h.killGrace):
			_ = h.signalGroup(pid, syscall.SIGKILL)
		}
	}()
	return nil
}

// signalGroup signals the whole process group; a process that already
// exited is not an error.
func (h *Handle) signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to signal process group %d: %w", pid, err)
	}
	return nil
}

// wait reaps the process, records the result, closes the done channel,
// and fires the completion callback exactly once.
func (h *Handle) wait(onDone func(Result)) {
	err := h.cmd.Wait()

	exitCode := 0
	if err != nil {
		exitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				exitCode = 128 + int(status.Signal())
			}
		}
	}

	res := Result{
		Started:  true,
		ExitCode: exitCode,
		Stdout:   h.stdout.String(),
		Stderr:   h.stderr.String(),
	}

	h.mu.Lock()
	h.result = res
	h.exited = true
	h.mu.Unlock()

	h.logger.Debug("external tool exited",
		"pid", h.PID(),
		"exit_code", exitCode)

	close(h.done)

	if onDone != nil {
		onDone(res)
	}
}
