package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/fuzz/internal/debounce"
	fuzzlog "github.com/runger/fuzz/internal/log"
	"github.com/runger/fuzz/internal/picker"
	"github.com/runger/fuzz/internal/search"
)

// Exit codes of pick. These match the expectations of shell scripts:
//
//	0 = selection made (use the result)
//	1 = cancelled by user
//	2 = no usable terminal or a setup error
const (
	exitSuccess   = 0
	exitCancelled = 1
	exitFallback  = 2
)

// minTermWidth is the narrowest terminal the picker draws in.
const minTermWidth = 20

var (
	pickQuery    string
	pickDebounce time.Duration
	pickLimit    int
)

var pickCmd = &cobra.Command{
	Use:     "pick",
	Short:   "Search interactively and print the chosen path:line",
	GroupID: groupCore,
	Long: `Open an interactive search. Results refresh as you type, once the
query has been stable for the debounce interval. Enter prints the
selected match as path:line on stdout; Esc cancels.

Exit status is 0 on selection, 1 when cancelled and 2 when no
terminal is available.

Examples:
  fuzz pick
  fuzz pick --query handler
  loc=$(fuzz pick) && vim "+${loc##*:}" "${loc%:*}"`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	pickCmd.Flags().StringVarP(&pickQuery, "query", "q", "", "initial query")
	pickCmd.Flags().DurationVar(&pickDebounce, "debounce", 0, "quiet period before searching (default: search.debounce_ms)")
	pickCmd.Flags().IntVarP(&pickLimit, "limit", "n", 0, "maximum number of results (default: search.limit)")

	rootCmd.AddCommand(pickCmd)
}

// terminal is the picker's input and output; on Unix both are /dev/tty.
type terminal struct {
	in  *os.File
	out *os.File
}

// checkTERM verifies that the TERM environment variable is not "dumb".
func checkTERM() error {
	if os.Getenv("TERM") == "dumb" {
		return errors.New("TERM=dumb is not supported")
	}
	return nil
}

func fallback(err error) error {
	return &exitError{code: exitFallback, err: err}
}

func runPick(cmd *cobra.Command, args []string) error {
	if err := checkTERM(); err != nil {
		return fallback(err)
	}

	env, err := loadEnvironment()
	if err != nil {
		return fallback(err)
	}

	// The terminal belongs to the picker, so logs go to a file.
	logger := fuzzlog.Discard()
	if f, err := fuzzlog.OpenFile(env.logFile()); err == nil {
		defer f.Close()
		logger = env.logger(f)
	}
	env.startup(logger, "pick")

	svc, err := env.service(logger)
	if err != nil {
		return fallback(err)
	}

	tty, err := openTTY()
	if err != nil {
		return fallback(err)
	}
	defer tty.Close()

	if w := tty.width(); w > 0 && w < minTermWidth {
		return fallback(fmt.Errorf("terminal too narrow (%d columns, need at least %d)", w, minTermWidth))
	}

	d := debounce.New(searchFunc(svc, effectiveLimit(pickLimit, env.cfg), logger), debounce.Options{
		Interval: pickInterval(pickDebounce, env.cfg.Debounce()),
		Logger:   logger,
	})
	defer d.Close()

	// Detect the color profile from the tty, not from stdout which is
	// usually a pipe. SetColorProfile updates the default renderer in
	// place, so the picker's package-level styles pick it up.
	lipgloss.SetColorProfile(termenv.NewOutput(tty.out).ColorProfile())

	model := picker.NewModel(d, env.root).WithQuery(pickQuery)
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty.in),
		tea.WithOutput(tty.out),
		tea.WithContext(cmd.Context()),
	)

	finalModel, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return &exitError{code: exitInterrupted}
		}
		return fallback(fmt.Errorf("TUI error: %w", err))
	}

	m, ok := finalModel.(picker.Model)
	if !ok {
		return fallback(errors.New("unexpected model type"))
	}
	if m.IsCancelled() {
		return &exitError{code: exitCancelled}
	}

	if rec, ok := m.Result(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\n", rec.Path, rec.Line)
	}
	return nil
}

// searchFunc adapts svc to the debouncer, logging failed searches.
func searchFunc(svc *search.Service, limit int, logger *slog.Logger) debounce.SearchFunc {
	return func(ctx context.Context, query string) ([]search.Record, error) {
		recs, err := svc.Search(ctx, query, limit)
		if err != nil && !search.IsCanceled(err) {
			fuzzlog.LogSearchFailed(logger, query, err)
		}
		return recs, err
	}
}

// pickInterval returns the --debounce value, or the configured one.
func pickInterval(flag, configured time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return configured
}
