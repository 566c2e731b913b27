package tui

// Messages delivered to the Bubbletea model. The sink and the event
// bridge produce them from outside the program's goroutine via Send.

// sinkChangedMsg signals that the output sink's content changed and the
// viewport should re-render from a fresh snapshot.
type sinkChangedMsg struct{}

// jobStartedMsg reports that a job's subprocess was spawned.
type jobStartedMsg struct {
	jobID   string
	command string
}

// jobTickMsg reports one progress animation frame.
type jobTickMsg struct {
	jobID string
	frame int
}

// jobCompletedMsg reports a zero-exit job whose output was delivered.
type jobCompletedMsg struct {
	jobID string
	lines int
}

// jobAbortedMsg reports a job that ended without usable output.
type jobAbortedMsg struct {
	jobID    string
	exitCode int
	reason   string
}

// configReloadedMsg reports that the configuration file changed on disk
// and was re-read.
type configReloadedMsg struct{}

// errMsg carries an asynchronous error into the model.
type errMsg struct {
	err error
}
