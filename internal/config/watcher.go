package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dcrane/ghostwriter/internal/logging"
)

// reloadDebounce coalesces the burst of write events editors emit when
// saving a file into a single reload.
const reloadDebounce = 200 * time.Millisecond

// Watcher watches a config file and invokes a callback with the freshly
// loaded Config whenever the file changes. The running job is never
// touched; new settings apply from the next invocation.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
	logger   *logging.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, onChange func(*Config), logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Watcher{
		watcher:  fw,
		path:     path,
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It watches the file's directory rather than the
// file itself, because editors that save via rename would otherwise
// detach the watch.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop stops watching and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.watcher.Close()
}

func (w *Watcher) loop() {
	var pending *time.Timer
	var pendingCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if pending != nil {
				pending.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(reloadDebounce)
				pendingCh = pending.C
			} else {
				pending.Reset(reloadDebounce)
			}

		case <-pendingCh:
			pending = nil
			pendingCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) reload() {
	if err := viper.ReadInConfig(); err != nil {
		w.logger.Warn("config re-read failed", "path", w.path, "error", err.Error())
		return
	}
	cfg, err := Load()
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err.Error())
		return
	}
	for _, issue := range cfg.Issues() {
		w.logger.Warn("config value out of range, using default",
			"field", issue.Field,
			"value", issue.Value,
			"reason", issue.Message)
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
