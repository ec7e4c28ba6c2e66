package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/unitrack-go/internal/core/domain"
	"github.com/yndnr/unitrack-go/internal/telemetry/logger"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Session.Store != StoreFile {
		t.Errorf("Session.Store = %q, want file", cfg.Session.Store)
	}
	if !strings.HasSuffix(DefaultConfigPath(), filepath.Join(".unitrack", "cli.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", DefaultConfigPath())
	}
	if !strings.HasSuffix(cfg.SessionFile(), filepath.Join(".unitrack", "session.json")) {
		t.Errorf("SessionFile() = %q", cfg.SessionFile())
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server != Default().Server || cfg.Output != "table" || cfg.Session.StorageKey != "unitrack.session" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_Priority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := `server: https://file.unitrack.test
output: json
timeout: 10s
session:
  store: redis
  redis:
    addr: 127.0.0.1:6379
    ttl: 24h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("UNITRACK_OUTPUT", "yaml")
	t.Setenv("UNITRACK_SESSION__STORAGE_KEY", "env.session")

	cfg, err := Load(path, map[string]any{"server": "https://flag.unitrack.test"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name, got, want string
	}{
		{"flag beats file", cfg.Server, "https://flag.unitrack.test"},
		{"env beats file", cfg.Output, "yaml"},
		{"env nested key", cfg.Session.StorageKey, "env.session"},
		{"file beats default", cfg.Timeout, "10s"},
		{"file nested", cfg.Session.Redis.Addr, "127.0.0.1:6379"},
		{"default kept", cfg.Session.Redis.Prefix, "unitrack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	ttl, err := cfg.RedisTTL()
	if err != nil || ttl != 24*time.Hour {
		t.Errorf("RedisTTL() = %v, %v", ttl, err)
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("Load() error = %v, want ErrConfig", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")
	cfg := Default()
	cfg.Server = "https://api.unitrack.test"
	cfg.Session.Store = StoreBadger
	cfg.Session.BadgerDir = "/var/lib/unitrack"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Server != cfg.Server || got.Session.Store != StoreBadger || got.BadgerDir() != "/var/lib/unitrack" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CLIConfig)
		ok     bool
	}{
		{"default", func(*CLIConfig) {}, true},
		{"bad server", func(c *CLIConfig) { c.Server = "ftp://x" }, false},
		{"bad output", func(c *CLIConfig) { c.Output = "xml" }, false},
		{"bad timeout", func(c *CLIConfig) { c.Timeout = "soon" }, false},
		{"negative rate", func(c *CLIConfig) { c.RateLimit = -1 }, false},
		{"unknown store", func(c *CLIConfig) { c.Session.Store = "etcd" }, false},
		{"redis without addr", func(c *CLIConfig) { c.Session.Store = StoreRedis }, false},
		{"redis", func(c *CLIConfig) {
			c.Session.Store = StoreRedis
			c.Session.Redis.Addr = "localhost:6379"
		}, true},
		{"empty key", func(c *CLIConfig) { c.Session.StorageKey = " " }, false},
		{"sample ratio", func(c *CLIConfig) { c.Telemetry.SampleRatio = 2 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, domain.ErrConfig) {
				t.Errorf("Validate() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Timeout = "5s"
	cfg.RefreshPath = "/auth/refresh"

	cc, err := cfg.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cc.Timeout != 5*time.Second || cc.RefreshPath != "/auth/refresh" || cc.BaseURL != cfg.Server {
		t.Errorf("ClientConfig() = %+v", cc)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Session.Secret = "correct horse battery staple"
	cfg.Session.Redis.Password = "hunter2"

	r := cfg.Redacted()
	if r.Session.Secret != logger.RedactedValue || r.Session.Redis.Password != logger.RedactedValue {
		t.Errorf("Redacted() = %+v", r.Session)
	}
	if cfg.Session.Secret != "correct horse battery staple" {
		t.Error("Redacted() modified the original")
	}
}
