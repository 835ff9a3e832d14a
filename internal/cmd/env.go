package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/runger/fuzz/internal/config"
	fuzzlog "github.com/runger/fuzz/internal/log"
	"github.com/runger/fuzz/internal/search"
	"github.com/runger/fuzz/internal/stage"
)

// environment is the configuration a search command runs with, after
// the persistent flags have been applied.
type environment struct {
	cfg        *config.Config
	configPath string
	configErr  error // Set when the config file was ignored
	root       string
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPaths().ConfigFile()
}

// loadEnvironment loads the config file and applies --root, --engine and
// --debug. A config file that cannot be loaded is recorded in configErr
// and defaults are used instead.
func loadEnvironment() (*environment, error) {
	env := &environment{configPath: configPath()}

	cfg, err := config.LoadFromFile(env.configPath)
	if err != nil {
		env.configErr = err
		cfg = config.DefaultConfig()
		cfg.ApplyEnvOverrides()
	}
	if flagEngine != "" {
		cfg.Search.Engine = flagEngine
	}
	if flagDebug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	env.cfg = cfg

	root, err := resolveRoot(flagRoot, cfg.Search.Root)
	if err != nil {
		return nil, err
	}
	env.root = root
	return env, nil
}

// resolveRoot picks the search root: the flag, then the config value,
// then the working directory. The result is absolute.
func resolveRoot(flag, configured string) (string, error) {
	root := flag
	if root == "" {
		root = configured
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid search root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("search root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("search root %s is not a directory", abs)
	}
	return abs, nil
}

// logger creates a JSON logger writing to w at the configured level.
func (e *environment) logger(w io.Writer) *slog.Logger {
	return fuzzlog.New(&fuzzlog.Config{
		Output: w,
		Level:  fuzzlog.ParseLevel(e.cfg.Log.Level),
	})
}

// logFile returns the picker's log file path.
func (e *environment) logFile() string {
	if e.cfg.Log.File != "" {
		return e.cfg.Log.File
	}
	return config.DefaultPaths().LogFile()
}

// startup logs the resolved environment for command name.
func (e *environment) startup(logger *slog.Logger, name string) {
	if e.configErr != nil {
		fuzzlog.LogConfigIgnored(logger, e.configPath, e.configErr)
	}
	fuzzlog.LogStartup(logger, fuzzlog.StartupInfo{
		Version:    Version,
		Command:    name,
		Engine:     e.cfg.Search.Engine,
		Root:       e.root,
		ConfigPath: e.configPath,
	})
}

func (e *environment) scanOptions() stage.ScanOptions {
	return stage.ScanOptions{
		IgnoreGlobs: e.cfg.Search.IgnoreGlobs,
		MaxFileSize: e.cfg.Search.MaxFileSize,
		Hidden:      e.cfg.Search.Hidden,
	}
}

// external builds the rg | fzf | head toolchain from the tools section.
func (e *environment) external() (*stage.External, error) {
	tools, err := stage.NewExternal(stage.ExternalConfig{
		ScanCommand:  e.cfg.Tools.Scan,
		RankCommand:  e.cfg.Tools.Rank,
		LimitCommand: e.cfg.Tools.Limit,
		Options:      e.scanOptions(),
		GracePeriod:  e.cfg.KillGrace(),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid tools configuration: %w", err)
	}
	return tools, nil
}

// toolchain returns the toolchain for the configured engine.
func (e *environment) toolchain() (search.Toolchain, error) {
	if e.cfg.Search.Engine == config.EngineBuiltin {
		return &stage.Builtin{Options: e.scanOptions()}, nil
	}
	return e.external()
}

// service builds a search service over the resolved root.
func (e *environment) service(logger *slog.Logger) (*search.Service, error) {
	tools, err := e.toolchain()
	if err != nil {
		return nil, err
	}
	timeout := e.cfg.StageTimeout()
	p := search.NewPipeline(tools, search.Options{
		ScanTimeout:  timeout,
		RankTimeout:  timeout,
		LimitTimeout: timeout,
		Logger:       logger,
	})
	return search.NewService(p, e.root), nil
}
