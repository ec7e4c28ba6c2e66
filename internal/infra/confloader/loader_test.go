package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server string `koanf:"server"`
	Output string `koanf:"output"`
	Client struct {
		Timeout     time.Duration `koanf:"timeout"`
		RefreshPath string        `koanf:"refresh_path"`
	} `koanf:"client"`
	Session struct {
		Store string `koanf:"store"`
		Redis struct {
			Addr string `koanf:"addr"`
		} `koanf:"redis"`
	} `koanf:"session"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader_WithOptions(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/cli.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/path/to/cli.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server: "api.unitrack.test:8000"
client:
  timeout: 10s
  refresh_path: /users/refresh-token
session:
  store: badger
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("server"); got != "api.unitrack.test:8000" {
		t.Errorf("server = %q", got)
	}
	if got := l.GetString("session.store"); got != "badger" {
		t.Errorf("session.store = %q", got)
	}

	if err := l.LoadFile("/nonexistent/cli.yaml"); err == nil {
		t.Error("LoadFile() should return error for nonexistent file")
	}
	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") should not error, got: %v", err)
	}
}

func TestLoader_EnvKeyMapping(t *testing.T) {
	t.Setenv("UNITRACK_SERVER", "from-env:8000")
	t.Setenv("UNITRACK_CLIENT__REFRESH_PATH", "/auth/refresh")
	t.Setenv("UNITRACK_SESSION__REDIS__ADDR", "localhost:6379")

	l := NewLoader()
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	tests := map[string]string{
		"server":              "from-env:8000",
		"client.refresh_path": "/auth/refresh",
		"session.redis.addr":  "localhost:6379",
	}
	for key, want := range tests {
		if got := l.GetString(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server: "from-file:8000"
output: json
`)
	t.Setenv("UNITRACK_SERVER", "from-env:8000")

	l := NewLoader(
		WithConfigFile(path),
		WithDefaults(map[string]any{
			"server":         "localhost:8000",
			"output":         "table",
			"client.timeout": "30s",
			"session.store":  "file",
		}),
	)

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server != "from-env:8000" {
		t.Errorf("Server = %q, env should override file", cfg.Server)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, file should override defaults", cfg.Output)
	}
	if cfg.Client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", cfg.Client.Timeout)
	}
	if cfg.Session.Store != "file" {
		t.Errorf("Store = %q, want default file", cfg.Session.Store)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, "output: json\n")

	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("output: yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloaded testConfig
	if err := l.Reload(&reloaded); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reloaded.Output != "yaml" {
		t.Errorf("Output after reload = %q, want yaml", reloaded.Output)
	}

	if err := os.WriteFile(path, []byte("output: [unclosed\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(&reloaded); err == nil {
		t.Error("Reload() of invalid YAML should fail")
	}
	if got := l.GetString("output"); got != "yaml" {
		t.Errorf("failed reload replaced values: output = %q", got)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"session.store": "memory",
		"verbose":       true,
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if got := l.GetString("session.store"); got != "memory" {
		t.Errorf("session.store = %q, want memory", got)
	}
	if !l.GetBool("verbose") {
		t.Error("verbose should be true")
	}
	if !l.Exists("session.store") || l.Exists("session.redis") {
		t.Error("Exists() mismatch")
	}
	if len(l.All()) != 2 {
		t.Errorf("All() = %v, want 2 keys", l.All())
	}
}
