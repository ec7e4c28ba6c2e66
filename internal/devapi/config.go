package devapi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/infra/confloader"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

// EnvPrefix is the environment prefix of the dev API
// (UNITRACK_DEVAPI_AUTH__SECRET maps to auth.secret).
const EnvPrefix = "UNITRACK_DEVAPI_"

// Default configuration values.
const (
	DefaultAddr            = "127.0.0.1:8000"
	DefaultBasePath        = "/api/v1"
	DefaultAccessTTL       = "15m"
	DefaultRefreshTTL      = "168h"
	DefaultShutdownTimeout = "10s"
	DefaultSeedPassword    = "unitrack"
)

// Config is the root configuration of unitrack-devapi.
type Config struct {
	// Addr is the listen address.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
	// BasePath prefixes every API route.
	BasePath string `koanf:"base_path" json:"base_path" yaml:"base_path"`
	// ShutdownTimeout bounds graceful shutdown, as a Go duration.
	ShutdownTimeout string `koanf:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`

	Auth      AuthConfig      `koanf:"auth" json:"auth" yaml:"auth"`
	Seed      SeedConfig      `koanf:"seed" json:"seed" yaml:"seed"`
	CORS      CORSConfig      `koanf:"cors" json:"cors" yaml:"cors"`
	TLS       TLSConfig       `koanf:"tls" json:"tls,omitempty" yaml:"tls,omitempty"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	// Secret signs access tokens. Empty generates a per-process secret.
	Secret     string `koanf:"secret" json:"secret,omitempty" yaml:"secret,omitempty"`
	AccessTTL  string `koanf:"access_ttl" json:"access_ttl" yaml:"access_ttl"`
	RefreshTTL string `koanf:"refresh_ttl" json:"refresh_ttl" yaml:"refresh_ttl"`
	// BcryptCost is the password hashing cost; zero means bcrypt.DefaultCost.
	BcryptCost int `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" yaml:"bcrypt_cost,omitempty"`
}

// SeedConfig controls the demo accounts created at startup.
type SeedConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`
	// Domain is the e-mail domain of the seeded accounts.
	Domain string `koanf:"domain" json:"domain" yaml:"domain"`
}

// CORSConfig configures cross-origin access for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`
}

// TLSConfig enables HTTPS. Both files are watched and reloaded on change.
type TLSConfig struct {
	CertFile string `koanf:"cert_file" json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `koanf:"key_file" json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// Enabled reports whether a key pair is configured.
func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	OTLPEndpoint string  `koanf:"otlp_endpoint" json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"`
	SampleRatio  float64 `koanf:"sample_ratio" json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		BasePath:        DefaultBasePath,
		ShutdownTimeout: DefaultShutdownTimeout,
		Auth: AuthConfig{
			AccessTTL:  DefaultAccessTTL,
			RefreshTTL: DefaultRefreshTTL,
		},
		Seed: SeedConfig{
			Enabled:  true,
			Password: DefaultSeedPassword,
			Domain:   "unitrack.dev",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{SampleRatio: 1},
	}
}

// Defaults returns Default flattened for the loader.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"addr":                   d.Addr,
		"base_path":              d.BasePath,
		"shutdown_timeout":       d.ShutdownTimeout,
		"auth.access_ttl":        d.Auth.AccessTTL,
		"auth.refresh_ttl":       d.Auth.RefreshTTL,
		"seed.enabled":           d.Seed.Enabled,
		"seed.password":          d.Seed.Password,
		"seed.domain":            d.Seed.Domain,
		"cors.allowed_origins":   d.CORS.AllowedOrigins,
		"log.level":              d.Log.Level,
		"log.format":             d.Log.Format,
		"telemetry.sample_ratio": d.Telemetry.SampleRatio,
	}
}

// NewLoader returns a loader over defaults, the file at path (skipped when
// empty or absent) and UNITRACK_DEVAPI_* variables.
func NewLoader(path string) (*confloader.Loader, error) {
	opts := []confloader.Option{
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithDefaults(Defaults()),
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, confloader.WithConfigFile(path))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrConfig.WithDetails(path).WithCause(err)
		}
	}
	return confloader.NewLoader(opts...), nil
}

// Load reads and validates the configuration.
func Load(path string) (*Config, error) {
	loader, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := loader.Load(cfg); err != nil {
		return nil, domain.ErrConfig.WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr: required"))
	}
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		errs = append(errs, fmt.Errorf("base_path: %q must start with /", c.BasePath))
	}
	if _, err := c.ShutdownWait(); err != nil {
		errs = append(errs, err)
	}
	access, err := c.AccessTTL()
	if err != nil {
		errs = append(errs, err)
	}
	refresh, err := c.RefreshTTL()
	if err != nil {
		errs = append(errs, err)
	}
	if access > 0 && refresh > 0 && refresh <= access {
		errs = append(errs, errors.New("auth.refresh_ttl: must exceed auth.access_ttl"))
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < 16 {
		errs = append(errs, errors.New("auth.secret: must be at least 16 bytes"))
	}
	if c.Seed.Enabled && c.Seed.Password == "" {
		errs = append(errs, errors.New("seed.password: required when seeding"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls: cert_file and key_file must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return domain.ErrConfig.WithCause(err)
	}
	return nil
}

// AccessTTL parses Auth.AccessTTL.
func (c *Config) AccessTTL() (time.Duration, error) {
	return positiveDuration("auth.access_ttl", c.Auth.AccessTTL, DefaultAccessTTL)
}

// RefreshTTL parses Auth.RefreshTTL.
func (c *Config) RefreshTTL() (time.Duration, error) {
	return positiveDuration("auth.refresh_ttl", c.Auth.RefreshTTL, DefaultRefreshTTL)
}

// ShutdownWait parses ShutdownTimeout.
func (c *Config) ShutdownWait() (time.Duration, error) {
	return positiveDuration("shutdown_timeout", c.ShutdownTimeout, DefaultShutdownTimeout)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Secret != "" {
		out.Auth.Secret = logger.RedactedValue
	}
	if out.Seed.Password != "" {
		out.Seed.Password = logger.RedactedValue
	}
	return &out
}

func positiveDuration(key, value, fallback string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}
