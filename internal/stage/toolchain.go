package stage

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/shlex"
)

// Default tool commands for the External toolchain.
const (
	DefaultScanCommand  = "rg"
	DefaultRankCommand  = "fzf"
	DefaultLimitCommand = "head"
)

// ScanOptions controls which files the scan step reads.
type ScanOptions struct {
	IgnoreGlobs []string
	MaxFileSize int64 // Bytes; 0 means unlimited
	Hidden      bool
}

// ExternalConfig describes the commands of an External toolchain. Each
// command is a shell-style string: the first word is the executable and
// the rest are extra arguments placed before the generated ones.
type ExternalConfig struct {
	ScanCommand  string
	RankCommand  string
	LimitCommand string
	Options      ScanOptions
	GracePeriod  time.Duration
}

// External builds stages that run ripgrep, fzf and head.
type External struct {
	scan, rank, limit []string
	opts              ScanOptions
	grace             time.Duration
}

// NewExternal parses the configured commands. Empty commands fall back to
// rg, fzf and head.
func NewExternal(cfg ExternalConfig) (*External, error) {
	scan, err := splitCommand(cfg.ScanCommand, DefaultScanCommand)
	if err != nil {
		return nil, fmt.Errorf("scan command: %w", err)
	}
	rank, err := splitCommand(cfg.RankCommand, DefaultRankCommand)
	if err != nil {
		return nil, fmt.Errorf("rank command: %w", err)
	}
	limit, err := splitCommand(cfg.LimitCommand, DefaultLimitCommand)
	if err != nil {
		return nil, fmt.Errorf("limit command: %w", err)
	}
	return &External{
		scan:  scan,
		rank:  rank,
		limit: limit,
		opts:  cfg.Options,
		grace: cfg.GracePeriod,
	}, nil
}

// Executables returns the scan, rank and limit executables in that order.
func (t *External) Executables() []string {
	return []string{t.scan[0], t.rank[0], t.limit[0]}
}

// Scan returns a ripgrep stage listing every non-empty line under root.
func (t *External) Scan(root string) Stage {
	args := slices.Clone(t.scan[1:])
	for _, g := range t.opts.IgnoreGlobs {
		args = append(args, "--glob=!"+g)
	}
	args = append(args,
		"--column",
		"--line-number",
		"--no-heading",
		"--color=never",
		"--smart-case",
		"--field-match-separator=:",
	)
	if t.opts.MaxFileSize > 0 {
		args = append(args, "--max-filesize="+FormatSize(t.opts.MaxFileSize))
	}
	if t.opts.Hidden {
		args = append(args, "--hidden")
	}
	args = append(args, "--", MatchAll, root)

	// 1 is "no match"; 2 is "some files could not be read".
	return &Exec{Path: t.scan[0], Args: args, OKExitCodes: []int{0, 1, 2}, GracePeriod: t.grace}
}

// Rank returns an fzf stage in non-interactive filter mode.
func (t *External) Rank(query string) Stage {
	args := append(slices.Clone(t.rank[1:]), "-f", query)
	return &Exec{Path: t.rank[0], Args: args, OKExitCodes: []int{0, 1}, GracePeriod: t.grace}
}

// Limit returns a head stage keeping the first n lines.
func (t *External) Limit(n int) Stage {
	args := append(slices.Clone(t.limit[1:]), "-n", strconv.Itoa(n))
	return &Exec{Path: t.limit[0], Args: args, GracePeriod: t.grace}
}

// Builtin builds in-process stages that need no external binaries.
type Builtin struct {
	Options ScanOptions
}

// Scan returns a Scanner over root.
func (t *Builtin) Scan(root string) Stage {
	return &Scanner{
		Root:        root,
		Pattern:     MatchAll,
		IgnoreGlobs: t.Options.IgnoreGlobs,
		MaxFileSize: t.Options.MaxFileSize,
		Hidden:      t.Options.Hidden,
	}
}

// Rank returns a Ranker for query.
func (t *Builtin) Rank(query string) Stage { return &Ranker{Query: query} }

// Limit returns a Limiter keeping n lines.
func (t *Builtin) Limit(n int) Stage { return &Limiter{N: n} }

// FormatSize renders a byte count the way ripgrep's --max-filesize
// expects it, using the largest exact K/M/G suffix.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return strconv.FormatInt(n>>30, 10) + "G"
	case n >= 1<<20 && n%(1<<20) == 0:
		return strconv.FormatInt(n>>20, 10) + "M"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n>>10, 10) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func splitCommand(command, fallback string) ([]string, error) {
	if command == "" {
		command = fallback
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return []string{fallback}, nil
	}
	return argv, nil
}
