package config

// Default values for configuration options, the fallback layer used both
// as the TOML decode target and when no config file exists at all.
const (
	defaultCacheFileName  = "cache.db"
	defaultCachePrefix    = "K"
	defaultPasswordEnv    = "RECORDSYNC_PASSWORD"
	defaultRemoteBaseURL  = "http://127.0.0.1:8787"
	defaultPollInterval   = "5m"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
)

// DefaultConfig returns a Config populated with all default values. This is
// the starting point for TOML decoding (unset fields keep their defaults)
// and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Path:        DefaultCachePath(),
			PasswordEnv: defaultPasswordEnv,
			Prefix:      defaultCachePrefix,
		},
		Remote: RemoteConfig{
			BaseURL: defaultRemoteBaseURL,
		},
		Sync: SyncConfig{
			PollInterval: defaultPollInterval,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
