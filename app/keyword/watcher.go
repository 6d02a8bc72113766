package keyword

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Reload reads path and rebuilds the registry from it.
func Reload(r *Registry, path string) error {
	groups, err := LoadFile(path)
	if err != nil {
		return err
	}
	return r.Rebuild(groups)
}

// Watch rebuilds the registry whenever the keyword file changes, until ctx is
// cancelled. The parent directory is watched so editors that replace the file
// on save are still noticed.
func Watch(ctx context.Context, r *Registry, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(path)
	slog.Info("Keyword watcher started", "path", target)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			slog.Info("Keyword watcher stopped")
			return nil

		case <-fire:
			fire = nil
			if err := Reload(r, target); err != nil {
				slog.Error("Failed to reload keyword file", "path", target, "error", err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Keyword watcher error", "error", err)
		}
	}
}
