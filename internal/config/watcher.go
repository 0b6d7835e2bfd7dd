package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands the
// new value to OnReload. Invalid files are logged and skipped.
type Watcher struct {
	path     string
	logger   *slog.Logger
	onReload func(Config)
}

func NewWatcher(path string, logger *slog.Logger, onReload func(Config)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, logger: logger, onReload: onReload}
}

// Start watches the file's directory so that editors which replace the
// file by rename are noticed. It returns once the watch is set up.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	target := filepath.Clean(w.path)

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.reload(ev)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) reload(ev fsnotify.Event) {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", ev.Name, "error", err)
		return
	}
	w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
