package main

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// watchConfig watches path for writes and updates level in place whenever
// the log_level field changes, so an operator can raise verbosity on a
// running daemon without restarting it mid-reconciliation. Errors are
// logged, not fatal — a watch failure shouldn't take the daemon down.
func watchConfig(path string, level *slog.LevelVar, logger *slog.Logger) {
	if path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watch disabled: could not start watcher", "error", err)

		return
	}

	if err := watcher.Add(path); err != nil {
		logger.Warn("config watch disabled: could not watch file", "path", path, "error", err)
		watcher.Close()

		return
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg, err := loadDaemonConfig(path)
				if err != nil {
					logger.Warn("config reload failed", "error", err)
					continue
				}

				level.Set(logLevel(cfg.LogLevel))
				logger.Info("config reloaded", "log_level", cfg.LogLevel)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Warn("config watch error", "error", err)
			}
		}
	}()
}
