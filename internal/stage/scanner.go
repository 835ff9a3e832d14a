package stage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// MatchAll is the scan pattern that selects every non-empty line.
const MatchAll = "."

// binarySniffLen is how many leading bytes are checked for NUL.
const binarySniffLen = 8000

// Scanner is the in-process scan stage. It walks Root in lexical order
// and emits every line matching Pattern as path:line:column:text.
type Scanner struct {
	Root        string
	Pattern     string // Regular expression; empty means MatchAll
	IgnoreGlobs []string
	MaxFileSize int64 // Bytes; 0 means unlimited
	Hidden      bool  // Include dot-files and dot-directories
}

// Compile-time check that Scanner implements Stage.
var _ Stage = (*Scanner)(nil)

// Name implements Stage.
func (s *Scanner) Name() string { return "scan" }

// Run implements Stage. The scanner has no input; in is ignored.
func (s *Scanner) Run(ctx context.Context, _ io.Reader, out io.Writer) Outcome {
	re, err := compileSmartCase(s.Pattern)
	if err != nil {
		return failed(s.Name(), fmt.Errorf("invalid pattern: %w", err))
	}

	w := bufio.NewWriter(out)
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			return nil // unreadable entries are skipped
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.Root && s.ignored(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return s.scanFile(path, d, re, w)
	})
	if err == nil {
		err = w.Flush()
	}
	return finish(ctx, s.Name(), err)
}

// ignored reports whether an entry with this base name is excluded.
func (s *Scanner) ignored(name string) bool {
	if !s.Hidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, g := range s.IgnoreGlobs {
		g = strings.TrimSuffix(strings.TrimSuffix(g, "/**"), "/")
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) scanFile(path string, d fs.DirEntry, re *regexp.Regexp, w *bufio.Writer) error {
	if s.MaxFileSize > 0 {
		info, err := d.Info()
		if err != nil || info.Size() > s.MaxFileSize {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0 {
		return nil
	}

	lineNo := 0
	for len(data) > 0 {
		lineNo++
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})

		loc := re.FindIndex(line)
		if loc == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s:%d:%d:%s\n", path, lineNo, loc[0]+1, line); err != nil {
			return err
		}
	}
	return nil
}

// compileSmartCase compiles pattern case-insensitively unless it
// contains an upper-case letter.
func compileSmartCase(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = MatchAll
	}
	if !hasUpper(pattern) {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
