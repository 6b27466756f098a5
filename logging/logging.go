// Package logging provides JSON structured logging using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to every control plane component
type Logger interface {
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	WithComponent(component string) Logger
	With(key string, value interface{}) Logger
}

// Config controls logger construction
type Config struct {
	Level      string `toml:"level"`
	Output     string `toml:"output"` // stdout or stderr
	TimeFormat string `toml:"time_format"`
	Pretty     bool   `toml:"pretty"`
}

// DefaultConfig reads LOG_LEVEL and LOG_OUTPUT from the environment
func DefaultConfig() Config {
	return Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Output: getEnvOrDefault("LOG_OUTPUT", "stdout"),
	}
}

type zlogger struct {
	zl zerolog.Logger
}

// New builds a Logger from config
func New(cfg Config) (Logger, error) {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return build(output, cfg)
}

func build(output io.Writer, cfg Config) (Logger, error) {
	if cfg.Pretty {
		format := time.RFC3339
		if cfg.TimeFormat != "" {
			format = cfg.TimeFormat
		}
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: format}
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, err
		}
	}

	zl := zerolog.New(output).Level(level)
	if cfg.TimeFormat == "" {
		zl = zl.With().Timestamp().Logger()
	} else {
		// zerolog.TimeFieldFormat is process-wide; format per logger instead
		zl = zl.Hook(timestampHook(cfg.TimeFormat))
	}
	return NewFromZerolog(zl), nil
}

func timestampHook(format string) zerolog.HookFunc {
	return func(e *zerolog.Event, _ zerolog.Level, _ string) {
		e.Str(zerolog.TimestampFieldName, time.Now().Format(format))
	}
}

// NewFromZerolog adapts an existing zerolog.Logger
func NewFromZerolog(zl zerolog.Logger) Logger {
	return &zlogger{zl: zl}
}

// NewTestLogger returns a logger that discards all output
func NewTestLogger() Logger {
	return &zlogger{zl: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

func (l *zlogger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *zlogger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *zlogger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *zlogger) Error() *zerolog.Event { return l.zl.Error() }

func (l *zlogger) WithComponent(component string) Logger {
	return &zlogger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *zlogger) With(key string, value interface{}) Logger {
	return &zlogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
