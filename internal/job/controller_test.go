package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dcrane/ghostwriter/internal/command"
	ghosterr "github.com/dcrane/ghostwriter/internal/errors"
	"github.com/dcrane/ghostwriter/internal/event"
	"github.com/dcrane/ghostwriter/internal/runner"
)

// fakeSink records sink calls. Mutations arrive serialized from the
// controller, but tests read concurrently, so it locks.
type fakeSink struct {
	mu      sync.Mutex
	lines   []string
	visible bool
	resets  int
}

func (s *fakeSink) EnsureVisible() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
}

func (s *fakeSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.resets++
}

func (s *fakeSink) AppendLines(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
}

func (s *fakeSink) ReplaceLastLine(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		s.lines = []string{text}
		return
	}
	s.lines[len(s.lines)-1] = text
}

func (s *fakeSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

type fakeSource struct {
	path  string
	lines []string
}

func (f *fakeSource) CurrentFilePath() string { return f.path }

func (f *fakeSource) GetLines(start, end int) ([]string, error) {
	if start < 1 || end > len(f.lines) {
		return nil, fmt.Errorf("range %d-%d out of bounds", start, end)
	}
	out := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, f.lines[i-1])
	}
	return out, nil
}

func (f *fakeSource) ExpandModifier(token string) string { return f.path }

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Errorf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, fmt.Sprintf(format, args...))
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	copy(out, n.msgs)
	return out
}

type fakeInsertion struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInsertion) InsertAfterCursor(lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, lines...)
	return nil
}

func (f *fakeInsertion) inserted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// awaitEvent subscribes to one event type on the bus and returns a
// channel that receives matching events. The channel is buffered so
// handlers never block the publisher.
func awaitEvent(bus *event.Bus, eventType string) <-chan event.Event {
	ch := make(chan event.Event, 16)
	bus.Subscribe(eventType, func(ev event.Event) {
		ch <- ev
	})
	return ch
}

func waitFor(t *testing.T, ch <-chan event.Event, timeout time.Duration) event.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func newTestController(t *testing.T, tool string, opts Options) (*Controller, *fakeSink, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	sink := &fakeSink{}
	run := runner.New("/bin/sh", 0, 100*time.Millisecond, nil)
	asm := command.NewAssembler(tool)
	opts.Bus = bus
	if opts.TickInterval == 0 {
		opts.TickInterval = 20 * time.Millisecond
	}
	return New(run, asm, sink, opts), sink, bus
}

func TestAsyncSuccessDeliversStdout(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "echo", Options{})
	completed := awaitEvent(bus, "job.completed")

	jobID, err := ctrl.Start(Invocation{RawArgs: "hello world"}, nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("jobID = %q, want %q", jobID, "job-1")
	}

	ev := waitFor(t, completed, 2*time.Second).(event.JobCompletedEvent)
	if ev.JobID != jobID {
		t.Errorf("completed event job ID = %q, want %q", ev.JobID, jobID)
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("sink lines = %v, want [hello world]", got)
	}
	if !sink.visible {
		t.Error("sink was never made visible")
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state after completion = %v, want idle", ctrl.State())
	}
	if ctrl.Active() {
		t.Error("controller still tracks a handle after completion")
	}
}

func TestAsyncNonzeroExitDeliversAborted(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "echo", Options{})
	aborted := awaitEvent(bus, "job.aborted")

	if _, err := ctrl.Start(Invocation{RawArgs: "oops >&2; exit 3"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ev := waitFor(t, aborted, 2*time.Second).(event.JobAbortedEvent)
	if ev.ExitCode != 3 {
		t.Errorf("aborted exit code = %d, want 3", ev.ExitCode)
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != AbortedMarker {
		t.Errorf("sink lines = %v, want [%s]", got, AbortedMarker)
	}
}

func TestAsyncSpawnFailureDeliversNoResponse(t *testing.T) {
	bus := event.NewBus()
	sink := &fakeSink{}
	run := runner.New("/nonexistent/ghostwriter-shell", 0, 100*time.Millisecond, nil)
	ctrl := New(run, command.NewAssembler("echo"), sink, Options{Bus: bus})

	_, err := ctrl.Start(Invocation{RawArgs: "hi"}, nil)
	if err == nil {
		t.Fatal("Start with unrunnable shell did not fail")
	}
	if !ghosterr.IsSpawnFailure(err) {
		t.Errorf("error not classified as spawn failure: %v", err)
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != NoResponseMarker {
		t.Errorf("sink lines = %v, want [%s]", got, NoResponseMarker)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state after spawn failure = %v, want idle", ctrl.State())
	}
}

func TestTickerAnimatesAndResultOverwritesResidue(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "sleep", Options{})
	ticks := awaitEvent(bus, "job.tick")
	completed := awaitEvent(bus, "job.completed")

	if _, err := ctrl.Start(Invocation{RawArgs: "0.3 && printf 'a\\nb\\n'"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tick := waitFor(t, ticks, 2*time.Second).(event.JobTickEvent)
	if tick.Frame < 1 || tick.Frame > 3 {
		t.Errorf("tick frame = %d, want 1..3", tick.Frame)
	}

	mid := sink.snapshot()
	if len(mid) != 1 || !strings.HasPrefix(mid[0], "Processing") {
		t.Errorf("sink during run = %v, want single Processing line", mid)
	}

	waitFor(t, completed, 2*time.Second)

	got := sink.snapshot()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("sink lines = %v, want [a b]", got)
	}
	for _, line := range got {
		if strings.Contains(line, "Processing") {
			t.Errorf("progress residue survived delivery: %v", got)
		}
	}
}

func TestTickerDecaysAfterCompletion(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "echo", Options{TickInterval: 30 * time.Millisecond})
	completed := awaitEvent(bus, "job.completed")

	if _, err := ctrl.Start(Invocation{RawArgs: "done"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, completed, 2*time.Second)

	// Give the ticker goroutine several intervals to fire if it were
	// going to; the delivered result must not be repainted.
	time.Sleep(150 * time.Millisecond)
	got := sink.snapshot()
	if len(got) != 1 || got[0] != "done" {
		t.Errorf("sink lines after decay window = %v, want [done]", got)
	}
}

func TestStopKillsRunningJob(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "sleep", Options{})
	aborted := awaitEvent(bus, "job.aborted")

	if _, err := ctrl.Start(Invocation{RawArgs: "30"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if ctrl.State() != StateRunning {
		t.Fatalf("state after Start = %v, want running", ctrl.State())
	}

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	ev := waitFor(t, aborted, 3*time.Second).(event.JobAbortedEvent)
	if ev.ExitCode == 0 {
		t.Error("killed job reported exit code 0")
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != AbortedMarker {
		t.Errorf("sink lines = %v, want [%s]", got, AbortedMarker)
	}
	if ctrl.Active() {
		t.Error("controller still tracks a handle after kill")
	}
}

// blockingSink stalls inside its first ReplaceLastLine, standing in
// for a host sink handing off to a busy UI loop.
type blockingSink struct {
	fakeSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) ReplaceLastLine(text string) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.fakeSink.ReplaceLastLine(text)
}

func TestStopNotBlockedByBusySink(t *testing.T) {
	sink := &blockingSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	bus := event.NewBus()
	run := runner.New("/bin/sh", 0, 100*time.Millisecond, nil)
	ctrl := New(run, command.NewAssembler("sleep"), sink, Options{
		Bus:          bus,
		TickInterval: 10 * time.Millisecond,
	})
	aborted := awaitEvent(bus, "job.aborted")

	if _, err := ctrl.Start(Invocation{RawArgs: "30"}, nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait until a ticker frame is stuck inside the sink.
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker never reached the sink")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- ctrl.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop blocked while the sink was busy")
	}

	// State queries must stay responsive too.
	_ = ctrl.State()

	close(sink.release)
	waitFor(t, aborted, 3*time.Second)

	got := sink.snapshot()
	if len(got) != 1 || got[0] != AbortedMarker {
		t.Errorf("sink lines = %v, want [%s]", got, AbortedMarker)
	}
}

func TestFailedOverlappingStartKeepsTrackedJob(t *testing.T) {
	// A shell binary the test can remove out from under the runner, so
	// the second spawn fails while the first job is still alive.
	shell := filepath.Join(t.TempDir(), "sh")
	data, err := os.ReadFile("/bin/sh")
	if err != nil {
		t.Fatalf("reading shell: %v", err)
	}
	if err := os.WriteFile(shell, data, 0o755); err != nil {
		t.Fatalf("copying shell: %v", err)
	}

	bus := event.NewBus()
	sink := &fakeSink{}
	run := runner.New(shell, 0, 100*time.Millisecond, nil)
	ctrl := New(run, command.NewAssembler("sleep"), sink, Options{
		Bus:          bus,
		TickInterval: 20 * time.Millisecond,
	})
	aborted := awaitEvent(bus, "job.aborted")

	first, err := ctrl.Start(Invocation{RawArgs: "30"}, nil)
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := os.Remove(shell); err != nil {
		t.Fatalf("removing shell: %v", err)
	}

	if _, err := ctrl.Start(Invocation{RawArgs: "0"}, nil); err == nil {
		t.Fatal("second Start with a removed shell did not fail")
	}

	// The failed start must not orphan the first job: it stays tracked
	// and the state stays consistent with that.
	if !ctrl.Active() {
		t.Error("tracked job lost after a failed start")
	}
	if ctrl.State() == StateIdle {
		t.Error("state idle while a job is still tracked")
	}

	// The first job is still the controller's to stop, and its exit
	// still reaches the sink.
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-aborted:
			e := ev.(event.JobAbortedEvent)
			if e.JobID != first {
				// The failed start's own abort event.
				continue
			}
			if ctrl.Active() {
				t.Error("handle still tracked after the first job exited")
			}
			if ctrl.State() != StateIdle {
				t.Errorf("state after exit = %v, want idle", ctrl.State())
			}
			return
		case <-deadline:
			t.Fatal("first job's exit never surfaced")
		}
	}
}

func TestStopWithNoJobIsNoOp(t *testing.T) {
	ctrl, _, _ := newTestController(t, "echo", Options{})
	if err := ctrl.Stop(); err != nil {
		t.Errorf("Stop with no job = %v, want nil", err)
	}
}

func TestOverlappingStartOrphansFirstJob(t *testing.T) {
	ctrl, sink, bus := newTestController(t, "sleep", Options{})

	var mu sync.Mutex
	var completions []event.JobCompletedEvent
	done := make(chan string, 16)
	bus.Subscribe("job.completed", func(ev event.Event) {
		c := ev.(event.JobCompletedEvent)
		mu.Lock()
		completions = append(completions, c)
		mu.Unlock()
		done <- c.JobID
	})

	if _, err := ctrl.Start(Invocation{RawArgs: "0.4 && echo first"}, nil); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	second, err := ctrl.Start(Invocation{RawArgs: "0 && echo second"}, nil)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	select {
	case id := <-done:
		if id != second {
			t.Fatalf("first completion was %q, want %q", id, second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second job never completed")
	}

	got := sink.snapshot()
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("sink lines = %v, want [second]", got)
	}

	// The first job exits later; its completion is stale and must not
	// disturb the delivered result.
	time.Sleep(600 * time.Millisecond)
	got = sink.snapshot()
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("orphaned completion reached the sink: %v", got)
	}
	mu.Lock()
	n := len(completions)
	mu.Unlock()
	if n != 1 {
		t.Errorf("completion events = %d, want 1", n)
	}
}

func TestSyncSuccessInserts(t *testing.T) {
	notifier := &fakeNotifier{}
	insert := &fakeInsertion{}
	ctrl, _, _ := newTestController(t, "echo", Options{Notifier: notifier, Insertion: insert})

	_, err := ctrl.RunSync(context.Background(), Invocation{RawArgs: "hi", Synchronous: true}, nil)
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	got := insert.inserted()
	if len(got) != 1 || got[0] != "hi" {
		t.Errorf("inserted lines = %v, want [hi]", got)
	}
	if msgs := notifier.messages(); len(msgs) != 0 {
		t.Errorf("unexpected notifications: %v", msgs)
	}
}

func TestSyncFormatterAppliedForCodeContexts(t *testing.T) {
	insert := &fakeInsertion{}
	formatter := func(lines []string, hint string) []string {
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = "// " + l
		}
		return out
	}
	ctrl, _, _ := newTestController(t, "echo", Options{Insertion: insert, Formatter: formatter})

	if _, err := ctrl.RunSync(context.Background(), Invocation{RawArgs: "hi", LanguageHint: "go"}, nil); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	got := insert.inserted()
	if len(got) != 1 || got[0] != "// hi" {
		t.Errorf("inserted lines = %v, want [// hi]", got)
	}
}

func TestSyncFormatterSkippedForPlainContexts(t *testing.T) {
	insert := &fakeInsertion{}
	formatter := func(lines []string, hint string) []string {
		t.Error("formatter called for plain context")
		return lines
	}
	ctrl, _, _ := newTestController(t, "echo", Options{Insertion: insert, Formatter: formatter})

	if _, err := ctrl.RunSync(context.Background(), Invocation{RawArgs: "hi", LanguageHint: "markdown"}, nil); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}
	got := insert.inserted()
	if len(got) != 1 || got[0] != "hi" {
		t.Errorf("inserted lines = %v, want [hi]", got)
	}
}

func TestSyncNonzeroExitNotifiesStderr(t *testing.T) {
	notifier := &fakeNotifier{}
	insert := &fakeInsertion{}
	ctrl, _, _ := newTestController(t, "echo", Options{Notifier: notifier, Insertion: insert})

	_, err := ctrl.RunSync(context.Background(), Invocation{RawArgs: "bad >&2; exit 1"}, nil)
	if err == nil {
		t.Fatal("RunSync with failing tool did not return an error")
	}

	msgs := notifier.messages()
	if len(msgs) != 1 || msgs[0] != "bad" {
		t.Errorf("notifications = %v, want [bad]", msgs)
	}
	if got := insert.inserted(); len(got) != 0 {
		t.Errorf("failed run inserted lines: %v", got)
	}
}

func TestSyncSpawnFailureNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	run := runner.New("/nonexistent/ghostwriter-shell", 0, 100*time.Millisecond, nil)
	ctrl := New(run, command.NewAssembler("echo"), &fakeSink{}, Options{Notifier: notifier})

	_, err := ctrl.RunSync(context.Background(), Invocation{RawArgs: "hi"}, nil)
	if err == nil {
		t.Fatal("RunSync with unrunnable shell did not fail")
	}
	if !ghosterr.IsSpawnFailure(err) {
		t.Errorf("error not classified as spawn failure: %v", err)
	}
	if msgs := notifier.messages(); len(msgs) != 1 {
		t.Errorf("notifications = %v, want one message", msgs)
	}
}

func TestSyncCanceledContextAbortsAndNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	insert := &fakeInsertion{}
	ctrl, _, bus := newTestController(t, "sleep", Options{Notifier: notifier, Insertion: insert})
	aborted := awaitEvent(bus, "job.aborted")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := ctrl.RunSync(ctx, Invocation{RawArgs: "30", Synchronous: true}, nil)
	if err == nil {
		t.Fatal("RunSync with a canceled context did not fail")
	}
	if !ghosterr.Is(err, ghosterr.ErrKilled) {
		t.Errorf("error should classify as a kill, got: %v", err)
	}

	ev := waitFor(t, aborted, 2*time.Second).(event.JobAbortedEvent)
	if ev.Reason != "killed" {
		t.Errorf("abort reason = %q, want killed", ev.Reason)
	}

	msgs := notifier.messages()
	if len(msgs) != 1 || msgs[0] != AbortedMarker {
		t.Errorf("notifications = %v, want [%s]", msgs, AbortedMarker)
	}
	if got := insert.inserted(); len(got) != 0 {
		t.Errorf("canceled run inserted lines: %v", got)
	}
}

func TestSyncSelectionPipedToStdin(t *testing.T) {
	insert := &fakeInsertion{}
	ctrl, _, _ := newTestController(t, "cat", Options{Insertion: insert})
	src := &fakeSource{
		path:  "/tmp/notes.txt",
		lines: []string{"one", "two", "three", "four"},
	}

	// Reversed bounds still select lines 2..4.
	inv := Invocation{RawArgs: "", Selection: &command.Selection{Start: 4, End: 2}}
	if _, err := ctrl.RunSync(context.Background(), inv, src); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	got := insert.inserted()
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("inserted lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInvokeDispatchesOnSynchronousFlag(t *testing.T) {
	insert := &fakeInsertion{}
	ctrl, sink, bus := newTestController(t, "echo", Options{Insertion: insert})
	completed := awaitEvent(bus, "job.completed")

	if _, err := ctrl.Invoke(context.Background(), Invocation{RawArgs: "sync", Synchronous: true}, nil); err != nil {
		t.Fatalf("synchronous Invoke failed: %v", err)
	}
	if got := insert.inserted(); len(got) != 1 || got[0] != "sync" {
		t.Errorf("inserted lines = %v, want [sync]", got)
	}
	waitFor(t, completed, 2*time.Second)

	if _, err := ctrl.Invoke(context.Background(), Invocation{RawArgs: "async"}, nil); err != nil {
		t.Fatalf("asynchronous Invoke failed: %v", err)
	}
	waitFor(t, completed, 2*time.Second)
	if got := sink.snapshot(); len(got) != 1 || got[0] != "async" {
		t.Errorf("sink lines = %v, want [async]", got)
	}
}
