package stage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func scanLines(t *testing.T, s *Scanner) []string {
	t.Helper()
	var out bytes.Buffer
	o := s.Run(context.Background(), nil, &out)
	require.Equal(t, Completed, o.Status, "err: %v", o.Err)
	return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func TestScanner_EmitsEveryNonEmptyLine(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, root, "a.txt", "foo bar\n\n  indented\n")
	b := writeFile(t, root, "sub/b.txt", "x\r\ny\nz:with:colons")

	lines := scanLines(t, &Scanner{Root: root})

	assert.Equal(t, []string{
		a + ":1:1:foo bar",
		a + ":3:1:  indented",
		b + ":1:1:x",
		b + ":2:1:y",
		b + ":3:1:z:with:colons",
	}, lines)
}

func TestScanner_Skips(t *testing.T) {
	root := t.TempDir()
	keep := writeFile(t, root, "keep.go", "package keep\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = 1\n")
	writeFile(t, root, ".git/config", "[core]\n")
	writeFile(t, root, ".env", "SECRET=1\n")
	writeFile(t, root, "blob.bin", "abc\x00def\n")
	writeFile(t, root, "big.txt", strings.Repeat("a", 100)+"\n")

	lines := scanLines(t, &Scanner{
		Root:        root,
		IgnoreGlobs: []string{"node_modules"},
		MaxFileSize: 50,
	})

	assert.Equal(t, []string{keep + ":1:1:package keep"}, lines)
}

func TestScanner_Hidden(t *testing.T) {
	root := t.TempDir()
	env := writeFile(t, root, ".env", "SECRET=1\n")

	lines := scanLines(t, &Scanner{Root: root, Hidden: true})
	assert.Equal(t, []string{env + ":1:1:SECRET=1"}, lines)
}

func TestScanner_SmartCasePattern(t *testing.T) {
	root := t.TempDir()
	f := writeFile(t, root, "f.txt", "say Hello\nsay hello\n")

	assert.Equal(t, []string{f + ":1:5:say Hello", f + ":2:5:say hello"},
		scanLines(t, &Scanner{Root: root, Pattern: "hello"}))
	assert.Equal(t, []string{f + ":1:5:say Hello"},
		scanLines(t, &Scanner{Root: root, Pattern: "Hello"}))
}

func TestScanner_MissingRoot(t *testing.T) {
	o := (&Scanner{Root: filepath.Join(t.TempDir(), "gone")}).Run(context.Background(), nil, &bytes.Buffer{})
	assert.Equal(t, Failed, o.Status)
	assert.ErrorIs(t, o.Err, os.ErrNotExist)
}

func TestScanner_InvalidPattern(t *testing.T) {
	o := (&Scanner{Root: t.TempDir(), Pattern: "("}).Run(context.Background(), nil, &bytes.Buffer{})
	assert.Equal(t, Failed, o.Status)
	assert.Contains(t, o.Err.Error(), "invalid pattern")
}

func TestScanner_Canceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := (&Scanner{Root: root}).Run(ctx, nil, &bytes.Buffer{})
	assert.Equal(t, Canceled, o.Status)
}
