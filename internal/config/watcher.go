package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses editor write bursts (write+write, or the
// create+write pair of a rename replacement) into a single reload.
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and hands
// the validated result to a callback. Changes apply to the next session; a
// running session keeps the config it was started with.
type Watcher struct {
	path     string
	logger   *slog.Logger
	onReload func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given resolved config path. onReload
// is invoked with each successfully loaded and validated config.
func NewWatcher(path string, logger *slog.Logger, onReload func(*Config)) *Watcher {
	return &Watcher{path: path, logger: logger, onReload: onReload}
}

// Start begins watching until the context is canceled. A missing file or an
// unwatchable directory is non-fatal: edits simply take effect on restart.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil || w.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: editors replace config files by
	// rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.loop(ctx, watcher)
	return nil
}

// Close stops watching.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(reloadDebounce)
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("config watch error", slog.Any("error", err))
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, _, _, err := Load(w.path)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("config reload skipped", slog.String("path", w.path), slog.Any("error", err))
		}
		return
	}
	if w.logger != nil {
		w.logger.Info("configuration reloaded; applies to the next session", slog.String("path", w.path))
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
