// Package cmd implements the fuzz command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Command groups shown in help output.
const (
	groupCore  = "core"
	groupSetup = "setup"
)

// Persistent flag values.
var (
	flagConfig string
	flagRoot   string
	flagEngine string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "fuzz",
	Short: "interactive fuzzy search over the lines of your code",
	Long: `fuzz - interactive fuzzy search over the lines of your code
  - fuzz pick             type to search, enter to jump
  - fuzz search <query>   one-shot search for scripts

Searches run rg | fzf | head by default, or an in-process engine
with --engine builtin.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError ends the process with a specific code. A nil err exits
// without printing anything.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command. An interrupt cancels the running search.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) && ee.err == nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%sfuzz:%s %v\n", colorRed, colorReset, err)
	return err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Search:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/.config/fuzz/config.yaml)")
	pf.StringVar(&flagRoot, "root", "", "directory to search (default: search.root or the current directory)")
	pf.StringVar(&flagEngine, "engine", "", "search engine: external or builtin")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
}
