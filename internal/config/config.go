package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engines accepted by search.engine.
const (
	EngineExternal = "external" // rg | fzf | head subprocesses
	EngineBuiltin  = "builtin"  // In-process scan, rank and limit
)

// Limits applied to search.limit.
const (
	MinLimit = 1
	MaxLimit = 500
)

// Config represents the fuzz configuration.
type Config struct {
	Search SearchConfig `yaml:"search"`
	Tools  ToolsConfig  `yaml:"tools"`
	Log    LogConfig    `yaml:"log"`
}

// SearchConfig holds pipeline settings.
type SearchConfig struct {
	Root           string   `yaml:"root"`             // Directory to search (empty = current directory)
	Limit          int      `yaml:"limit"`            // Max records per search
	DebounceMs     int      `yaml:"debounce_ms"`      // Quiet period before a picker search starts
	Engine         string   `yaml:"engine"`           // external or builtin
	IgnoreGlobs    []string `yaml:"ignore_globs"`     // Paths never scanned
	MaxFileSize    int64    `yaml:"max_filesize"`     // Larger files are skipped (bytes, 0 = no limit)
	Hidden         bool     `yaml:"hidden"`           // Scan dot-files and dot-directories
	StageTimeoutMs int      `yaml:"stage_timeout_ms"` // Per-stage budget (0 = unlimited)
	KillGraceMs    int      `yaml:"kill_grace_ms"`    // SIGTERM to SIGKILL delay for external tools
}

// ToolsConfig holds the external tool commands. Each is split shell-style,
// so extra arguments may follow the executable.
type ToolsConfig struct {
	Scan  string `yaml:"scan"`
	Rank  string `yaml:"rank"`
	Limit string `yaml:"limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file for the picker (overrides default)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Limit:          20,
			DebounceMs:     500,
			Engine:         EngineExternal,
			IgnoreGlobs:    []string{"node_modules"},
			MaxFileSize:    1 << 20,
			StageTimeoutMs: 5000,
			KillGraceMs:    200,
		},
		Tools: ToolsConfig{
			Scan:  "rg",
			Rank:  "fzf",
			Limit: "head",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPaths().ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveToFile(DefaultPaths().ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Debounce returns search.debounce_ms as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}

// StageTimeout returns search.stage_timeout_ms as a duration.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Search.StageTimeoutMs) * time.Millisecond
}

// KillGrace returns search.kill_grace_ms as a duration.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Search.KillGraceMs) * time.Millisecond
}

// Get retrieves a configuration value by dot-separated key.
// For example: "search.limit" or "tools.scan"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "search":
		return c.getSearchField(field)
	case "tools":
		return c.getToolsField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "search":
		return c.setSearchField(field, value)
	case "tools":
		return c.setToolsField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (section, field string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

func (c *Config) getSearchField(field string) (string, error) {
	switch field {
	case "root":
		return c.Search.Root, nil
	case "limit":
		return strconv.Itoa(c.Search.Limit), nil
	case "debounce_ms":
		return strconv.Itoa(c.Search.DebounceMs), nil
	case "engine":
		return c.Search.Engine, nil
	case "ignore_globs":
		return strings.Join(c.Search.IgnoreGlobs, ","), nil
	case "max_filesize":
		return strconv.FormatInt(c.Search.MaxFileSize, 10), nil
	case "hidden":
		return strconv.FormatBool(c.Search.Hidden), nil
	case "stage_timeout_ms":
		return strconv.Itoa(c.Search.StageTimeoutMs), nil
	case "kill_grace_ms":
		return strconv.Itoa(c.Search.KillGraceMs), nil
	default:
		return "", fmt.Errorf("unknown field: search.%s", field)
	}
}

func (c *Config) setSearchField(field, value string) error {
	switch field {
	case "root":
		c.Search.Root = value
	case "limit":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for limit: %w", err)
		}
		c.Search.Limit = clampLimit(v)
	case "debounce_ms":
		v, err := nonNegative("debounce_ms", value)
		if err != nil {
			return err
		}
		c.Search.DebounceMs = v
	case "engine":
		if !isValidEngine(value) {
			return fmt.Errorf("invalid engine: %s (must be external or builtin)", value)
		}
		c.Search.Engine = value
	case "ignore_globs":
		c.Search.IgnoreGlobs = splitList(value)
	case "max_filesize":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid value for max_filesize: %q", value)
		}
		c.Search.MaxFileSize = v
	case "hidden":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for hidden: %w", err)
		}
		c.Search.Hidden = v
	case "stage_timeout_ms":
		v, err := nonNegative("stage_timeout_ms", value)
		if err != nil {
			return err
		}
		c.Search.StageTimeoutMs = v
	case "kill_grace_ms":
		v, err := nonNegative("kill_grace_ms", value)
		if err != nil {
			return err
		}
		c.Search.KillGraceMs = v
	default:
		return fmt.Errorf("unknown field: search.%s", field)
	}
	return nil
}

func (c *Config) getToolsField(field string) (string, error) {
	switch field {
	case "scan":
		return c.Tools.Scan, nil
	case "rank":
		return c.Tools.Rank, nil
	case "limit":
		return c.Tools.Limit, nil
	default:
		return "", fmt.Errorf("unknown field: tools.%s", field)
	}
}

func (c *Config) setToolsField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("tools.%s must not be empty", field)
	}
	switch field {
	case "scan":
		c.Tools.Scan = value
	case "rank":
		c.Tools.Rank = value
	case "limit":
		c.Tools.Limit = value
	default:
		return fmt.Errorf("unknown field: tools.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

// Validate validates the configuration. The result limit is clamped to
// [MinLimit, MaxLimit] rather than rejected.
func (c *Config) Validate() error {
	c.Search.Limit = clampLimit(c.Search.Limit)

	if c.Search.DebounceMs < 0 {
		return errors.New("search.debounce_ms must be >= 0")
	}
	if c.Search.MaxFileSize < 0 {
		return errors.New("search.max_filesize must be >= 0")
	}
	if c.Search.StageTimeoutMs < 0 {
		return errors.New("search.stage_timeout_ms must be >= 0")
	}
	if c.Search.KillGraceMs < 0 {
		return errors.New("search.kill_grace_ms must be >= 0")
	}
	if !isValidEngine(c.Search.Engine) {
		return fmt.Errorf("search.engine must be external or builtin (got: %s)", c.Search.Engine)
	}
	for _, g := range c.Search.IgnoreGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			return fmt.Errorf("search.ignore_globs: bad pattern %q", g)
		}
	}
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}
	return nil
}

func clampLimit(v int) int {
	if v < MinLimit {
		return MinLimit
	}
	if v > MaxLimit {
		return MaxLimit
	}
	return v
}

func nonNegative(name, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return v, nil
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidEngine(engine string) bool {
	switch engine {
	case EngineExternal, EngineBuiltin:
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FUZZ_ROOT"); v != "" {
		c.Search.Root = v
	}
	if v := os.Getenv("FUZZ_ENGINE"); v != "" {
		if isValidEngine(v) {
			c.Search.Engine = v
		}
	}
	if v := os.Getenv("FUZZ_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("FUZZ_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
}

// ListKeys returns the configuration keys accepted by Get and Set.
func ListKeys() []string {
	return []string{
		"search.root",
		"search.limit",
		"search.debounce_ms",
		"search.engine",
		"search.ignore_globs",
		"search.max_filesize",
		"search.hidden",
		"search.stage_timeout_ms",
		"search.kill_grace_ms",
		"tools.scan",
		"tools.rank",
		"tools.limit",
		"log.level",
		"log.file",
	}
}
