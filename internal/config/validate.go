package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const minPollInterval = 30 * time.Second

// Validate checks all configuration values and returns every error found,
// not just the first, so users see a complete report in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateRemote(&cfg.Remote)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateCache(c *CacheConfig) []error {
	var errs []error

	if c.Path == "" {
		errs = append(errs, errors.New("cache.path must not be empty"))
	}

	if c.PasswordEnv == "" {
		errs = append(errs, errors.New("cache.password_env must not be empty"))
	}

	if c.Prefix == "" {
		errs = append(errs, errors.New("cache.prefix must not be empty"))
	}

	return errs
}

func validateRemote(r *RemoteConfig) []error {
	var errs []error

	if r.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url must not be empty"))

		return errs
	}

	u, err := url.Parse(r.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("remote.base_url %q is not a valid absolute URL", r.BaseURL))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	d, err := time.ParseDuration(s.PollInterval)
	if err != nil {
		errs = append(errs, fmt.Errorf("sync.poll_interval %q is not a valid duration: %w", s.PollInterval, err))

		return errs
	}

	if d < minPollInterval {
		errs = append(errs, fmt.Errorf("sync.poll_interval %q must be at least %s", s.PollInterval, minPollInterval))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug/info/warn/error", l.Level))
	}

	switch l.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of auto/text/json", l.Format))
	}

	return errs
}
