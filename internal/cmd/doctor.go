package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/fuzz/internal/config"
	"github.com/runger/fuzz/internal/search"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Check fuzz configuration and search tools",
	GroupID: groupSetup,
	Long: `Run diagnostic checks on your fuzz setup.

This command checks:
- Configuration validity
- The search root
- The rg, fzf and head executables (external engine)
- The log directory

Examples:
  fuzz doctor
  fuzz doctor --engine builtin`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%sfuzz Doctor%s\n", colorBold, colorReset)
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out)

	results := make([]checkResult, 0, 8)
	results = append(results, checkConfiguration(configPath()))

	env, err := loadEnvironment()
	if err != nil {
		results = append(results, checkResult{
			name:    "Search root",
			status:  "error",
			message: err.Error(),
		})
	} else {
		results = append(results, checkResult{name: "Search root", status: "ok", message: env.root})
		results = append(results, checkTools(env)...)
		results = append(results, checkLogDir(env.logFile()))
	}

	return printResults(out, results)
}

func printResults(out io.Writer, results []checkResult) error {
	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		var statusIcon string
		switch r.status {
		case "ok":
			statusIcon = colorGreen + "[OK]" + colorReset
		case "warn":
			statusIcon = colorYellow + "[WARN]" + colorReset
			hasWarnings = true
		case "error":
			statusIcon = colorRed + "[ERROR]" + colorReset
			hasErrors = true
		}

		fmt.Fprintf(out, "  %s %s\n", statusIcon, r.name)
		if r.message != "" {
			fmt.Fprintf(out, "       %s%s%s\n", colorDim, r.message, colorReset)
		}
	}

	fmt.Fprintln(out)

	if hasErrors {
		fmt.Fprintf(out, "%sSome checks failed. Please fix the errors above.%s\n", colorRed, colorReset)
		return errors.New("doctor found errors")
	}

	if hasWarnings {
		fmt.Fprintf(out, "%sAll critical checks passed, but there are warnings.%s\n", colorYellow, colorReset)
	} else {
		fmt.Fprintf(out, "%sAll checks passed!%s\n", colorGreen, colorReset)
	}

	return nil
}

func checkConfiguration(path string) checkResult {
	if _, err := config.LoadFromFile(path); err != nil {
		return checkResult{
			name:    "Configuration",
			status:  "error",
			message: fmt.Sprintf("Failed to load: %v", err),
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{
			name:    "Configuration",
			status:  "ok",
			message: "Using defaults (no config file)",
		}
	}

	return checkResult{
		name:    "Configuration",
		status:  "ok",
		message: path,
	}
}

// checkTools looks up the external tools on PATH. They are required by
// the external engine and optional with the builtin one.
func checkTools(env *environment) []checkResult {
	tools, err := env.external()
	if err != nil {
		return []checkResult{{name: "Search tools", status: "error", message: err.Error()}}
	}

	missing := "error"
	if env.cfg.Search.Engine == config.EngineBuiltin {
		missing = "warn"
	}

	results := make([]checkResult, 0, 3)
	for _, tool := range tools.Executables() {
		path, err := exec.LookPath(tool)
		if err != nil {
			results = append(results, checkResult{
				name:    tool,
				status:  missing,
				message: search.ToolMissing(tool, err).Error(),
			})
			continue
		}
		results = append(results, checkResult{name: tool, status: "ok", message: path})
	}
	return results
}

// checkNameLogDir is the label used for the log-directory health check.
const checkNameLogDir = "Log directory"

func checkLogDir(logFile string) checkResult {
	dir := filepath.Dir(logFile)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return checkResult{
			name:    checkNameLogDir,
			status:  "warn",
			message: fmt.Sprintf("Missing: %s (will be created when needed)", dir),
		}
	case err != nil:
		return checkResult{
			name:    checkNameLogDir,
			status:  "error",
			message: fmt.Sprintf("Error accessing: %s", dir),
		}
	case !info.IsDir():
		return checkResult{
			name:    checkNameLogDir,
			status:  "error",
			message: fmt.Sprintf("Not a directory: %s", dir),
		}
	}
	return checkResult{name: checkNameLogDir, status: "ok", message: dir}
}
