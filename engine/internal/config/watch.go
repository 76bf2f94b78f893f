package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the config file at path whenever it changes and hands the
// result to onChange. It runs until ctx is cancelled.
//
// The engine applies only engine.log_level from a reload; rules, window size,
// transport and sinks are read once at startup. A file that fails to parse or
// validate is logged and skipped, so onChange only ever sees a valid Config.
//
// The containing directory is watched rather than the file itself, so saves
// that replace the file (rename over, delete and recreate) keep being seen.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Info("config: watching for changes", zap.String("path", target))

	timer := time.NewTimer(reloadDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			cfg, err := Load(target)
			if err != nil {
				logger.Error("config: reload failed, keeping previous config",
					zap.String("path", target), zap.Error(err))
				continue
			}
			logger.Info("config: reloaded",
				zap.String("path", target),
				zap.String("log_level", cfg.Engine.LogLevel))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config: watcher error", zap.Error(err))
		}
	}
}
