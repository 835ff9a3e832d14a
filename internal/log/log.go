// Package log provides JSON-lines structured logging for fuzz.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
	}
}

// New creates a JSON-lines logger. Each line looks like:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"DEBUG","msg":"search finished","run_id":"…","records":20}
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "ts"
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(output, opts))
}

// NewFromEnv creates a stderr logger. FUZZ_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("FUZZ_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a config level name to a slog.Level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenFile opens path for appending, creating its directory if needed.
// The caller closes the returned file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// StartupInfo holds what is logged when a command starts.
type StartupInfo struct {
	Version    string
	Command    string
	Engine     string
	Root       string
	ConfigPath string
}

// LogStartup logs command startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Debug("fuzz started",
		"version", info.Version,
		"command", info.Command,
		"engine", info.Engine,
		"root", info.Root,
		"config_path", info.ConfigPath,
		"pid", os.Getpid(),
	)
}

// LogSearchFailed logs a search that ended in a user-facing error.
func LogSearchFailed(logger *slog.Logger, query string, err error) {
	logger.Warn("search failed", "query", query, "error", err)
}

// LogConfigIgnored logs a config file that could not be loaded.
func LogConfigIgnored(logger *slog.Logger, path string, err error) {
	logger.Warn("config ignored, using defaults", "config_path", path, "error", err)
}
