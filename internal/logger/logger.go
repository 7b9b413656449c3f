// Package logger provides the structured logger used by the sagastore
// binaries. It implements saga.Logger on top of charmbracelet/log.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Level is a configured log level name.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// ParseLevel validates a level name. Names are case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l, nil
	default:
		return "", fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}

func (l Level) charmLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Config controls logger output.
type Config struct {
	Level      Level
	Output     io.Writer
	JSON       bool
	TimeFormat string
	Prefix     string
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// Logger is a leveled key/value logger.
type Logger struct {
	charm *charmlog.Logger
}

// New creates a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	charm := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.charmLevel(),
		Prefix:          cfg.Prefix,
	})
	if cfg.JSON {
		charm.SetFormatter(charmlog.JSONFormatter)
	} else {
		charm.SetFormatter(charmlog.TextFormatter)
	}

	return &Logger{charm: charm}
}

func (l *Logger) Debug(msg string, keyvals ...any) {
	l.charm.Debug(msg, keyvals...)
}

func (l *Logger) Info(msg string, keyvals ...any) {
	l.charm.Info(msg, keyvals...)
}

func (l *Logger) Warn(msg string, keyvals ...any) {
	l.charm.Warn(msg, keyvals...)
}

func (l *Logger) Error(msg string, keyvals ...any) {
	l.charm.Error(msg, keyvals...)
}

// With returns a logger that adds keyvals to every entry.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{charm: l.charm.With(keyvals...)}
}
