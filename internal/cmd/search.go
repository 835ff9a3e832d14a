package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/runger/fuzz/internal/config"
	"github.com/runger/fuzz/internal/search"
)

// exitInterrupted is the conventional exit code after SIGINT.
const exitInterrupted = 130

var (
	searchJSON  bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Fuzzy search the lines of every file under the root",
	GroupID: groupCore,
	Long: `Fuzzy search the lines of every file under the search root and print
the best matches, best first.

Multiple arguments are joined with spaces into one query.

Examples:
  fuzz search handler             # Lines fuzzy-matching "handler"
  fuzz search --json -n 5 ctx err # Top 5 as JSON
  fuzz search --root ~/src TODO   # Search another directory`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default: search.limit)")
	searchCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(searchCmd)
}

type searchResponse struct {
	Query   string        `json:"query"`
	Root    string        `json:"root"`
	Results []search.Item `json:"results"`
	Total   int           `json:"total"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyColorMode()

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	logger := env.logger(cmd.ErrOrStderr())
	env.startup(logger, "search")

	svc, err := env.service(logger)
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	recs, err := svc.Search(cmd.Context(), query, effectiveLimit(searchLimit, env.cfg))
	if err != nil {
		if search.IsCanceled(err) {
			return &exitError{code: exitInterrupted}
		}
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		return writeSearchJSON(out, query, env.root, recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(out, "No matches found.")
		return nil
	}

	width := 0
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		width = terminalWidth()
	}
	for _, it := range formatForWidth(env.root, recs, width) {
		fmt.Fprintf(out, "%s%s%s  %s\n", colorCyan, it.Detail, colorReset, it.Label)
	}
	return nil
}

// effectiveLimit applies the configured default and bounds to a -n value.
func effectiveLimit(flag int, cfg *config.Config) int {
	if flag <= 0 {
		return cfg.Search.Limit
	}
	return min(flag, config.MaxLimit)
}

// formatForWidth formats recs so that detail, two spaces and label fit in
// width columns. A width of 0 disables truncation.
func formatForWidth(root string, recs []search.Record, width int) []search.Item {
	f := search.Formatter{Root: root}
	items := f.FormatAll(recs)
	if width <= 0 {
		return items
	}

	widest := 0
	for _, it := range items {
		widest = max(widest, runewidth.StringWidth(it.Detail))
	}
	f.MaxWidth = max(width-widest-2, 10)
	return f.FormatAll(recs)
}

func writeSearchJSON(w io.Writer, query, root string, recs []search.Record) error {
	items := search.Formatter{Root: root}.FormatAll(recs)
	resp := searchResponse{
		Query:   query,
		Root:    root,
		Results: items,
		Total:   len(items),
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}
