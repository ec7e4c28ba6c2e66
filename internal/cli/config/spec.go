package config

import "github.com/yndnr/unitrack-go/internal/infra/tlsroots"

// Session store kinds.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// CLIConfig is the configuration of unitrack-cli.
type CLIConfig struct {
	// Server is the backend origin.
	Server string `koanf:"server" json:"server" yaml:"server"`
	// Output is the default output format (table, json, yaml).
	Output string `koanf:"output" json:"output" yaml:"output"`
	// Timeout bounds each request, as a Go duration ("30s").
	Timeout string `koanf:"timeout" json:"timeout" yaml:"timeout"`
	// RefreshPath overrides the refresh endpoint.
	RefreshPath string `koanf:"refresh_path" json:"refresh_path,omitempty" yaml:"refresh_path,omitempty"`
	// RateLimit caps requests per second; zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RateBurst int     `koanf:"rate_burst" json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`

	Session   SessionConfig   `koanf:"session" json:"session" yaml:"session"`
	TLS       tlsroots.Config `koanf:"tls" json:"tls,omitempty" yaml:"tls,omitempty"`
	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry" json:"telemetry,omitempty" yaml:"telemetry,omitempty"`

	// HistoryFile is the shell history path.
	HistoryFile string `koanf:"history_file" json:"history_file,omitempty" yaml:"history_file,omitempty"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Store      string `koanf:"store" json:"store" yaml:"store"`
	StorageKey string `koanf:"storage_key" json:"storage_key" yaml:"storage_key"`
	// File is the session file for the file store.
	File string `koanf:"file" json:"file,omitempty" yaml:"file,omitempty"`
	// Secret, when set, seals the session file at rest.
	Secret string `koanf:"secret" json:"secret,omitempty" yaml:"secret,omitempty"`
	// Watch reloads the session when another process rewrites the file.
	Watch bool `koanf:"watch" json:"watch,omitempty" yaml:"watch,omitempty"`
	// BadgerDir is the data directory of the badger store.
	BadgerDir string      `koanf:"badger_dir" json:"badger_dir,omitempty" yaml:"badger_dir,omitempty"`
	Redis     RedisConfig `koanf:"redis" json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `koanf:"db" json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `koanf:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL expires the stored record, as a Go duration. Empty keeps it forever.
	TTL string `koanf:"ttl" json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// LogConfig configures diagnostics on stderr.
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
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "http://localhost:8000/api/v1",
		Output:  "table",
		Timeout: "30s",
		Session: SessionConfig{
			Store:      StoreFile,
			StorageKey: "unitrack.session",
			Redis:      RedisConfig{Prefix: "unitrack"},
		},
		Log: LogConfig{Level: "warn", Format: "text"},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
	}
}

// Defaults returns Default flattened for the loader.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"server":                 d.Server,
		"output":                 d.Output,
		"timeout":                d.Timeout,
		"session.store":          d.Session.Store,
		"session.storage_key":    d.Session.StorageKey,
		"session.redis.prefix":   d.Session.Redis.Prefix,
		"log.level":              d.Log.Level,
		"log.format":             d.Log.Format,
		"telemetry.sample_ratio": d.Telemetry.SampleRatio,
	}
}
