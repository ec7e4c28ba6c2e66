package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging surface shared by the CLI, the API client and the
// development backend.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Slog exposes the underlying slog.Logger for libraries that take one.
	Slog() *slog.Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is text (also accepted as console) or json.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource records the calling file and line.
	AddSource bool
}

// DefaultConfig logs info and above as text on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text", Output: os.Stderr}
}

// level is shared by every logger built with New so that SetLevel applies
// to all of them.
var level = new(slog.LevelVar)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// slogLogger adapts *slog.Logger to Logger. Debug, Info, Warn and Error are
// promoted from the embedded logger.
type slogLogger struct {
	*slog.Logger
}

func (l slogLogger) With(args ...any) Logger {
	return slogLogger{l.Logger.With(args...)}
}

func (l slogLogger) Slog() *slog.Logger {
	return l.Logger
}

// New builds a logger from cfg and sets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	level.Set(parseLevel(cfg.Level))
	return slogLogger{slog.New(h)}, nil
}

func newHandler(cfg Config) (slog.Handler, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}
	switch strings.ToLower(cfg.Format) {
	case "", "text", "console":
		return slog.NewTextHandler(out, opts), nil
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	}
	return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
}

// Discard returns a logger that drops everything. It is the zero value for
// optional logger dependencies.
func Discard() Logger {
	return slogLogger{slog.New(slog.DiscardHandler)}
}

// SetLevel changes the level of every logger built with New. Unknown names
// select info. The CLI uses it for --verbose; the dev backend on config
// reload.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

func parseLevel(name string) slog.Level {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l
	}
	return slog.LevelInfo
}

type holder struct{ Logger }

var std atomic.Pointer[holder]

func init() {
	h, _ := newHandler(DefaultConfig())
	std.Store(&holder{slogLogger{slog.New(h)}})
}

// SetDefault replaces the process logger returned by Default. A nil l is
// ignored.
func SetDefault(l Logger) {
	if l != nil {
		std.Store(&holder{l})
	}
}

// Default returns the process logger. L falls back to it for contexts that
// carry no logger.
func Default() Logger {
	return std.Load().Logger
}
