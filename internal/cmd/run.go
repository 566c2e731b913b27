package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dcrane/ghostwriter/internal/command"
	"github.com/dcrane/ghostwriter/internal/event"
	"github.com/dcrane/ghostwriter/internal/job"
)

var runCmd = &cobra.Command{
	Use:   "run [arguments for the tool]",
	Short: "Run the tool once and print its output",
	Long: `Run hands the given arguments to the external tool and prints its
output to the terminal.

Filename-modifier tokens in the arguments ("%", "%:p", "%:h", "%:t",
"%:r", "%:e") expand against the buffer file given with --file; escape
the marker as "\%" to pass it through literally. A --range selection is
piped to the tool's stdin.

Examples:
  # Ask the tool a question
  ghostwriter run summarize this repository

  # Pipe lines 3-10 of notes.txt to the tool
  ghostwriter run --file notes.txt --range 3,10 rewrite this

  # Block until the tool finishes and insert plain output
  ghostwriter run --sync --lang go document this function`,
	RunE: runRun,
}

var (
	runSync  bool
	runFile  string
	runRange string
	runLang  string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runSync, "sync", false, "Block until the tool exits instead of streaming")
	runCmd.Flags().StringVar(&runFile, "file", "", "Buffer file for token expansion and selections")
	runCmd.Flags().StringVar(&runRange, "range", "", "Line selection piped to stdin, as start,end (1-based)")
	runCmd.Flags().StringVar(&runLang, "lang", "", "Language hint for synchronous output formatting")
}

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))

func runRun(cmd *cobra.Command, args []string) error {
	s, closeStack, err := buildStack()
	if err != nil {
		return err
	}
	defer closeStack()

	var src command.BufferSource
	if runFile != "" {
		buf, err := command.OpenFileBuffer(runFile)
		if err != nil {
			return fmt.Errorf("failed to open buffer file: %w", err)
		}
		src = buf
	}

	sel, err := parseRange(runRange)
	if err != nil {
		return err
	}

	inv := job.Invocation{
		RawArgs:      strings.Join(args, " "),
		Synchronous:  runSync,
		Selection:    sel,
		LanguageHint: runLang,
	}

	if runSync {
		return runSynchronous(s, inv, src)
	}
	return runStreaming(s, inv, src)
}

// runSynchronous blocks on the tool and prints its output directly.
func runSynchronous(s *stack, inv job.Invocation, src command.BufferSource) error {
	ctrl := job.New(s.run, s.asm, &terminalSink{w: os.Stdout}, job.Options{
		Notifier:  &cliNotifier{w: os.Stderr},
		Insertion: &stdoutInsertion{w: os.Stdout},
		Formatter: commentFormatter,
		Bus:       s.bus,
		Logger:    s.logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err := ctrl.RunSync(ctx, inv, src)
	return err
}

// runStreaming starts the job asynchronously, animates progress on the
// terminal, and waits for the result to land.
func runStreaming(s *stack, inv job.Invocation, src command.BufferSource) error {
	sink := &terminalSink{w: os.Stdout}
	ctrl := job.New(s.run, s.asm, sink, job.Options{
		Notifier:     &cliNotifier{w: os.Stderr},
		Bus:          s.bus,
		Logger:       s.logger,
		TickInterval: s.cfg.Ticker.Interval(),
		TickLabel:    s.cfg.Ticker.Label,
		TickMaxDots:  s.cfg.Ticker.MaxDots,
	})

	done := make(chan struct{}, 2)
	subCompleted := s.bus.Subscribe("job.completed", func(event.Event) { done <- struct{}{} })
	subAborted := s.bus.Subscribe("job.aborted", func(event.Event) { done <- struct{}{} })
	defer s.bus.Unsubscribe(subCompleted)
	defer s.bus.Unsubscribe(subAborted)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if _, err := ctrl.Start(inv, src); err != nil {
		sink.flush()
		return err
	}

	for {
		select {
		case <-done:
			sink.flush()
			return nil
		case <-sigChan:
			// The kill surfaces through the normal exit path, which
			// fires the aborted event we are waiting on.
			_ = ctrl.Stop()
		}
	}
}

// parseRange parses a "start,end" line selection. Bounds may arrive in
// either order; the controller normalizes them.
func parseRange(s string) (*command.Selection, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range %q: want start,end", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q", parts[1])
	}
	return &command.Selection{Start: start, End: end}, nil
}

// terminalSink renders the job sink on a terminal. The progress line is
// repainted in place with a carriage return and an erase-line sequence.
// The controller serializes all calls.
type terminalSink struct {
	w    io.Writer
	open bool // an unterminated line is on screen
}

func (s *terminalSink) EnsureVisible() {}

func (s *terminalSink) Reset() {
	if s.open {
		fmt.Fprint(s.w, "\r\x1b[2K")
		s.open = false
	}
}

func (s *terminalSink) AppendLines(lines []string) {
	for _, line := range lines {
		if s.open {
			fmt.Fprintln(s.w)
		}
		fmt.Fprint(s.w, line)
		s.open = true
	}
}

func (s *terminalSink) ReplaceLastLine(text string) {
	fmt.Fprint(s.w, "\r\x1b[2K", text)
	s.open = true
}

// flush terminates the final line once the job is done.
func (s *terminalSink) flush() {
	if s.open {
		fmt.Fprintln(s.w)
		s.open = false
	}
}

// cliNotifier prints error notifications to the terminal.
type cliNotifier struct {
	w io.Writer
}

func (n *cliNotifier) Errorf(format string, args ...any) {
	fmt.Fprintln(n.w, errorStyle.Render(fmt.Sprintf(format, args...)))
}

// stdoutInsertion satisfies the synchronous insertion sink by printing
// the result lines.
type stdoutInsertion struct {
	w io.Writer
}

func (s *stdoutInsertion) InsertAfterCursor(lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(s.w, line); err != nil {
			return err
		}
	}
	return nil
}

// commentLeaders maps language hints to line-comment leaders for the
// synchronous formatter.
var commentLeaders = map[string]string{
	"go":         "//",
	"c":          "//",
	"cpp":        "//",
	"java":       "//",
	"javascript": "//",
	"typescript": "//",
	"rust":       "//",
	"python":     "#",
	"py":         "#",
	"ruby":       "#",
	"sh":         "#",
	"bash":       "#",
	"yaml":       "#",
	"lua":        "--",
	"sql":        "--",
	"vim":        "\"",
}

// commentFormatter wraps result lines in the target language's
// line-comment syntax. Unknown hints pass through unchanged.
func commentFormatter(lines []string, hint string) []string {
	leader, ok := commentLeaders[strings.ToLower(hint)]
	if !ok {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if line == "" {
			out[i] = leader
			continue
		}
		out[i] = leader + " " + line
	}
	return out
}
