package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads path whenever it changes and hands each valid config to
// onChange. Invalid edits are logged and skipped. The parent directory is
// watched so editors that replace the file atomically are still seen.
// Blocks until ctx is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Debug("watching config", zap.String("path", abs))

	// Editors emit bursts of events for a single save.
	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			res, err := LoadFromPath(abs)
			if err != nil {
				logger.Warn("config reload rejected", zap.String("path", abs), zap.Error(err))
				continue
			}
			onChange(res.Config)
		}
	}
}
