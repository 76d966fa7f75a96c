// Package config implements TOML configuration loading and validation for
// the sync client (spec.md's ambient configuration layer: cache paths,
// remote endpoint, password source, poll interval, log level).
package config

// Config is the top-level configuration structure.
type Config struct {
	Cache   CacheConfig   `toml:"cache"`
	Remote  RemoteConfig  `toml:"remote"`
	Sync    SyncConfig    `toml:"sync"`
	Logging LoggingConfig `toml:"logging"`
}

// CacheConfig locates and protects the local encrypted cache (C4).
type CacheConfig struct {
	// Path is the sqlite database file backing the local key/value store.
	Path string `toml:"path"`

	// PasswordEnv names the environment variable holding the cache
	// encryption password. Storing the password itself in the config
	// file is deliberately not supported.
	PasswordEnv string `toml:"password_env"`

	// Prefix namespaces the two keys a LocalCache keeps in the underlying
	// KVStore ("<Prefix>-data", "<Prefix>-sync"), per spec.md §4.4's
	// "namespaced by a configured prefix K". Lets more than one record-store
	// namespace share a single host KV store.
	Prefix string `toml:"prefix"`
}

// RemoteConfig addresses the authoritative remote store (cmd/recordsyncd).
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
}

// SyncConfig holds the poll interval setting. It is validated (at least
// 30s) but no command in this repository polls or reads it.
type SyncConfig struct {
	PollInterval string `toml:"poll_interval"`
}

// LoggingConfig controls log output. Level sets the CLI logger's baseline
// level; Format is validated, but the CLI always writes text logs.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}
