package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

// reloadDelay coalesces the burst of events an editor produces when saving.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the config file whenever it changes on disk and passes the new
// snapshot to onChange. Invalid files are logged and ignored. Watch blocks
// until ctx is cancelled.
func (c *Config) Watch(ctx context.Context, onChange func(Snapshot)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return util.WrapError("create config watcher", err)
	}
	defer w.Close() //nolint:errcheck // Watcher teardown, close error not actionable

	// Watch the directory so atomic renames by editors are picked up.
	target := filepath.Clean(c.filePath)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return util.WrapError("watch config directory", err)
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(reloadDelay)

		case <-reload:
			reload = nil
			if err := c.Load(); err != nil {
				slog.Warn("config reload rejected, keeping previous settings", "path", c.filePath, "error", err)
				continue
			}
			slog.Info("config reloaded", "path", c.filePath)
			onChange(c.Snapshot())

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}
