package search

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a search failure.
type Kind int

const (
	KindNoWorkspace Kind = iota + 1 // No root directory to search
	KindToolMissing                 // A stage's executable is not installed
	KindTimeout                     // A stage exceeded its time budget
	KindStageFailed                 // A stage exited abnormally
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNoWorkspace:
		return "no_workspace"
	case KindToolMissing:
		return "tool_missing"
	case KindTimeout:
		return "timeout"
	case KindStageFailed:
		return "stage_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a user-facing search failure. Tool names the stage at fault.
type Error struct {
	Kind Kind
	Tool string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNoWorkspace = &Error{Kind: KindNoWorkspace}
	ErrToolMissing = &Error{Kind: KindToolMissing}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrStageFailed = &Error{Kind: KindStageFailed}
)

// ErrUnparsableOutput is the cause of a StageFailed error when the limit
// stage produced output but none of it was path:line:column:text.
var ErrUnparsableOutput = errors.New("unrecognized output format")

// ErrCanceled reports a run superseded or abandoned by its caller. It is
// never shown to the user.
var ErrCanceled = errors.New("search canceled")

// installHints maps default tool names to the package that provides them.
var installHints = map[string]string{
	"rg":   "ripgrep",
	"fzf":  "fzf",
	"head": "coreutils",
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoWorkspace:
		return "no workspace folder is open, nothing to search"
	case KindToolMissing:
		pkg := installHints[e.Tool]
		if pkg == "" {
			pkg = e.Tool
		}
		return fmt.Sprintf("'%s' command not found. Make sure %s is installed", e.Tool, pkg)
	case KindTimeout:
		return fmt.Sprintf("'%s' command took too long to run, so it was stopped. "+
			"This normally happens when your project has too many files. "+
			"Make sure your .gitignore is ignoring files you don't want to include in your search", e.Tool)
	case KindStageFailed:
		if e.Err != nil {
			return fmt.Sprintf("'%s' failed: %v", e.Tool, e.Err)
		}
		return fmt.Sprintf("'%s' failed", e.Tool)
	default:
		return "search failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NoWorkspace returns a KindNoWorkspace error.
func NoWorkspace() error {
	return &Error{Kind: KindNoWorkspace}
}

// ToolMissing returns a KindToolMissing error for tool.
func ToolMissing(tool string, err error) error {
	return &Error{Kind: KindToolMissing, Tool: tool, Err: err}
}

// Timeout returns a KindTimeout error for tool.
func Timeout(tool string) error {
	return &Error{Kind: KindTimeout, Tool: tool}
}

// StageFailed returns a KindStageFailed error for tool.
func StageFailed(tool string, err error) error {
	return &Error{Kind: KindStageFailed, Tool: tool, Err: err}
}

// IsCanceled reports whether err means the run was canceled by its caller.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
