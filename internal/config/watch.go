package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file whenever it changes on disk,
// letting trust-level and pattern-file edits take effect without
// restarting the session. A failed reload is logged and the previous,
// last-known-good Config is kept rather than torn down.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *Config

	logger *slog.Logger
	fsw    *fsnotify.Watcher

	onChange func(*Config)
}

// NewWatcher loads path once and arms a filesystem watcher on its
// containing directory (watching the directory, not the file directly,
// survives editors that replace the file via rename-on-save instead of an
// in-place write).
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, current: cfg, logger: logger, fsw: fsw}, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked with the freshly loaded Config
// after each successful reload. It is not called for the initial load
// performed by NewWatcher.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Run drains filesystem events until ctx is cancelled, debouncing bursts of
// writes (editors commonly emit several events per save) before reloading.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-reload:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration", "path", w.path, "error", err)
		return
	}
	w.mu.Lock()
	w.current = cfg
	onChange := w.onChange
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", "path", w.path)
	if onChange != nil {
		onChange(cfg)
	}
}
