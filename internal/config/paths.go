package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "recordsync"

const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for config
// files: XDG_CONFIG_HOME (or ~/.config) on Linux, Application Support on
// macOS, ~/.config elsewhere.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "linux":
		return linuxDir("XDG_CONFIG_HOME", home, ".config")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for the local
// encrypted cache database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "linux":
		return linuxDir("XDG_DATA_HOME", home, filepath.Join(".local", "share"))
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDir(envVar, home, fallback string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DefaultCachePath returns the full path to the default cache database.
func DefaultCachePath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, defaultCacheFileName)
}
