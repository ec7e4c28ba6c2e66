package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/unitrack-go/internal/apiclient"
	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/confloader"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

// Dir returns ~/.unitrack.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".unitrack")
}

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "cli.yaml")
}

// Load merges defaults, the file at path (skipped when absent), the
// environment and overrides, in that order. An empty path means
// DefaultConfigPath. Override keys are dotted ("session.store").
func Load(path string, overrides map[string]any) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithDefaults(Defaults())}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrConfig.WithDetails(path).WithCause(err)
	}

	loader := confloader.NewLoader(opts...)
	cfg := &CLIConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, domain.ErrConfig.WithCause(err)
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, domain.ErrConfig.WithCause(err)
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, domain.ErrConfig.WithCause(err)
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML with mode 0600, creating the directory.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *CLIConfig) Validate() error {
	var errs []error
	if _, err := apiclient.ParseBaseURL(c.Server); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output: unknown format %q", c.Output))
	}
	if _, err := c.RequestTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit: must not be negative"))
	}
	if strings.TrimSpace(c.Session.StorageKey) == "" {
		errs = append(errs, errors.New("session.storage_key: required"))
	}
	switch c.Session.Store {
	case StoreFile, StoreBadger, StoreMemory:
	case StoreRedis:
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr: required for the redis store"))
		}
		if _, err := c.RedisTTL(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("session.store: unknown store %q", c.Session.Store))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio: must be within [0, 1]"))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.ErrConfig.WithCause(err)
	}
	return nil
}

// RequestTimeout parses Timeout; empty means apiclient.DefaultTimeout.
func (c *CLIConfig) RequestTimeout() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, apiclient.DefaultTimeout)
}

// RedisTTL parses Session.Redis.TTL; empty means no expiry.
func (c *CLIConfig) RedisTTL() (time.Duration, error) {
	return parseDuration("session.redis.ttl", c.Session.Redis.TTL, 0)
}

// ClientConfig derives the API client configuration.
func (c *CLIConfig) ClientConfig() (apiclient.Config, error) {
	timeout, err := c.RequestTimeout()
	if err != nil {
		return apiclient.Config{}, err
	}
	cfg := apiclient.DefaultConfig(c.Server)
	cfg.Timeout = timeout
	if c.RefreshPath != "" {
		cfg.RefreshPath = c.RefreshPath
	}
	return cfg, nil
}

// SessionFile returns the session file path, defaulting to
// ~/.unitrack/session.json.
func (c *CLIConfig) SessionFile() string {
	if c.Session.File != "" {
		return c.Session.File
	}
	return filepath.Join(Dir(), "session.json")
}

// BadgerDir returns the badger data directory, defaulting to
// ~/.unitrack/session.db.
func (c *CLIConfig) BadgerDir() string {
	if c.Session.BadgerDir != "" {
		return c.Session.BadgerDir
	}
	return filepath.Join(Dir(), "session.db")
}

// Redacted returns a copy safe to print.
func (c *CLIConfig) Redacted() *CLIConfig {
	out := *c
	if out.Session.Secret != "" {
		out.Session.Secret = logger.RedactedValue
	}
	if out.Session.Redis.Password != "" {
		out.Session.Redis.Password = logger.RedactedValue
	}
	return &out
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}
