// Package main implements recordsyncd, the reference authoritative remote
// store: an HTTP daemon wrapping internal/reconciler behind the six wire
// queries of spec.md §6.
package main

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
)

// daemonConfig is recordsyncd's own small configuration shape — distinct
// from internal/config.Config, which describes a client. Grounded on the
// same BurntSushi/toml decode-into-defaults idiom as internal/config/load.go.
type daemonConfig struct {
	Listen   string `toml:"listen"`
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
}

func defaultDaemonConfig() *daemonConfig {
	return &daemonConfig{
		Listen:   "127.0.0.1:8787",
		DBPath:   "recordsyncd.db",
		LogLevel: "info",
	}
}

func loadDaemonConfig(path string) (*daemonConfig, error) {
	cfg := defaultDaemonConfig()

	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("recordsyncd: loading config %s: %w", path, err)
	}

	return cfg, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
