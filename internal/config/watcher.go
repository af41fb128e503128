package config

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the daemon config file for changes and hot-reloads it.
// A new config is only adopted once it passes Validate; an invalid edit is
// reported through onError and the previously loaded config stays active.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string

	mu      sync.RWMutex
	current *DaemonConfig

	logger   *slog.Logger
	onReload func(*DaemonConfig)
	onError  func(error)

	done    chan struct{}
	running bool
}

// NewWatcher creates a Watcher for the daemon config file at path, seeded
// with initial as the currently active configuration.
func NewWatcher(path string, initial *DaemonConfig, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: fw,
		path:    path,
		current: initial,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// SetReloadCallback sets the function invoked with the new config after a
// successful reload.
func (w *Watcher) SetReloadCallback(f func(*DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = f
}

// SetErrorCallback sets the function invoked when a changed config file
// fails to parse or validate.
func (w *Watcher) SetErrorCallback(f func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = f
}

// Current returns the most recently loaded valid configuration.
func (w *Watcher) Current() *DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the config file's directory for changes. Watching
// the directory, not the file itself, survives editors that replace the
// file via rename-on-save rather than writing in place.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.watch()
	w.logger.Debug("config watcher started", "path", w.path)
	return nil
}

// Stop stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadDaemonConfigFrom(w.path)
	if err != nil {
		w.logger.Warn("config file changed but failed to load", "path", w.path, "error", err)
		w.mu.RLock()
		onError := w.onError
		w.mu.RUnlock()
		if onError != nil {
			onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	onReload := w.onReload
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	if onReload != nil {
		onReload(cfg)
	}
}
