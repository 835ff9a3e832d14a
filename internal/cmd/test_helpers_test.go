package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a Unix shell")
	}
}

type rootGlobals struct {
	config string
	root   string
	engine string
	debug  bool
}

// withCleanGlobals resets flag variables and isolates config, data and
// environment for one test.
func withCleanGlobals(t *testing.T) {
	t.Helper()
	old := rootGlobals{config: flagConfig, root: flagRoot, engine: flagEngine, debug: flagDebug}
	oldSearch := struct {
		json  bool
		limit int
		color string
	}{searchJSON, searchLimit, colorMode}

	flagConfig, flagRoot, flagEngine, flagDebug = "", "", "", false
	searchJSON, searchLimit, colorMode = false, 0, "auto"

	t.Cleanup(func() {
		flagConfig, flagRoot, flagEngine, flagDebug = old.config, old.root, old.engine, old.debug
		searchJSON, searchLimit, colorMode = oldSearch.json, oldSearch.limit, oldSearch.color
	})

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	for _, k := range []string{"FUZZ_ROOT", "FUZZ_ENGINE", "FUZZ_DEBUG", "FUZZ_LOG_LEVEL", "NO_COLOR"} {
		t.Setenv(k, "")
	}

	origRed, origGreen, origYellow := colorRed, colorGreen, colorYellow
	origCyan, origDim, origBold, origReset := colorCyan, colorDim, colorBold, colorReset
	disableColors()
	t.Cleanup(func() {
		colorRed, colorGreen, colorYellow = origRed, origGreen, origYellow
		colorCyan, colorDim, colorBold, colorReset = origCyan, origDim, origBold, origReset
	})
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeTree creates files under a new temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	return dir
}
