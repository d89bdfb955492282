// Package logging configures structured logging for the host tools and
// the Linux controller. Firmware builds log through core.DebugWriter
// instead.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"stepjog/core"
)

// Config selects the log level, format and destination
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // text or json
	Output     string `yaml:"output"`      // stdout, stderr or file
	OutputPath string `yaml:"output_path"` // used when Output is file
	AddSource  bool   `yaml:"add_source"`
}

// DefaultConfig returns text logging at info level on stderr
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}

// Logger is a slog.Logger that may own its output file
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// NewLogger creates a logger from cfg
func NewLogger(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		writer io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	case "file":
		if cfg.OutputPath == "" {
			return nil, fmt.Errorf("logging: output_path required for file output")
		}
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		writer, closer = f, f
	default:
		return nil, fmt.Errorf("logging: unknown output %q", cfg.Output)
	}

	return &Logger{Logger: slog.New(newHandler(writer, cfg.Format, level, cfg.AddSource)), closer: closer}, nil
}

// NewWriterLogger creates a logger writing to w. Used by tests.
func NewWriterLogger(w io.Writer, cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: slog.New(newHandler(w, cfg.Format, level, cfg.AddSource))}, nil
}

func newHandler(w io.Writer, format string, level slog.Level, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", name)
}

// Named returns a child logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// DebugWriter adapts the logger to core.DebugWriter so the motion event
// ring and debug prints land in the structured log
func (l *Logger) DebugWriter() core.DebugWriter {
	return func(msg string) {
		l.Debug(strings.TrimSpace(msg))
	}
}

// Close closes the output file, if the logger owns one
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
