//go:build !windows

// Package ptytest runs a program on a pseudo-terminal and scripts its
// input, for end-to-end tests of interactive commands.
//
// It wraps the Netflix go-expect library. The program gets the pty as its
// controlling terminal, so opening /dev/tty reaches the test, not the
// terminal the tests were started from.
package ptytest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// Default terminal size of a session.
const (
	DefaultRows = 30
	DefaultCols = 100
)

// Key constants for special keys (ANSI escape sequences)
const (
	KeyUp     = "\x1b[A"
	KeyDown   = "\x1b[B"
	KeyEscape = "\x1b"
	KeyEnter  = "\r"
	KeyCtrlC  = "\x03"
)

// Session is a program running on a pty.
type Session struct {
	Console *expect.Console
	Timeout time.Duration
	cmd     *exec.Cmd
	waited  bool
}

// Option configures a Session.
type Option func(*config)

type config struct {
	timeout    time.Duration
	env        []string
	dir        string
	rows, cols uint16
	showOutput bool
}

// WithTimeout sets the default timeout for expect operations.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithEnv adds environment variables to the program's environment.
func WithEnv(env ...string) Option {
	return func(c *config) {
		c.env = append(c.env, env...)
	}
}

// WithDir sets the program's working directory.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithSize sets the terminal size.
func WithSize(rows, cols uint16) Option {
	return func(c *config) {
		c.rows, c.cols = rows, cols
	}
}

// WithOutput copies the program's output to stdout for debugging.
func WithOutput(show bool) Option {
	return func(c *config) {
		c.showOutput = show
	}
}

// Start runs path with args on a new pty.
func Start(path string, args []string, opts ...Option) (*Session, error) {
	cfg := &config{timeout: 5 * time.Second, rows: DefaultRows, cols: DefaultCols}
	for _, opt := range opts {
		opt(cfg)
	}

	consoleOpts := []expect.ConsoleOpt{expect.WithDefaultTimeout(cfg.timeout)}
	if cfg.showOutput {
		consoleOpts = append(consoleOpts, expect.WithStdout(os.Stdout))
	}
	console, err := expect.NewConsole(consoleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console: %w", err)
	}
	if err := pty.Setsize(console.Tty(), &pty.Winsize{Rows: cfg.rows, Cols: cfg.cols}); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to set terminal size: %w", err)
	}

	cmd := exec.Command(path, args...) //nolint:gosec // G204: path is a test binary
	cmd.Dir = cfg.dir
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	// New session with the pty (fd 0 in the child) as controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}
	cmd.Env = append(os.Environ(), cfg.env...)
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")

	if err := cmd.Start(); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to start %s: %w", path, err)
	}

	return &Session{Console: console, Timeout: cfg.timeout, cmd: cmd}, nil
}

// Send sends text without a newline.
func (s *Session) Send(text string) error {
	_, err := s.Console.Send(text)
	return err
}

// SendKey sends a special key (use Key* constants).
func (s *Session) SendKey(key string) error {
	_, err := s.Console.Send(key)
	return err
}

// Expect waits for an exact string match in the output.
func (s *Session) Expect(str string) (string, error) {
	return s.Console.ExpectString(str)
}

// ExpectTimeout waits for an exact string match with a specific timeout.
func (s *Session) ExpectTimeout(str string, timeout time.Duration) (string, error) {
	return s.Console.Expect(expect.String(str), expect.WithTimeout(timeout))
}

// Wait waits up to the session timeout for the program to exit and
// returns its exit code.
func (s *Session) Wait() (int, error) {
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		s.waited = true
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	case <-time.After(s.Timeout):
		_ = s.cmd.Process.Kill()
		err := <-done
		s.waited = true
		return -1, fmt.Errorf("program did not exit within %s: %v", s.Timeout, err)
	}
}

// Close kills the program if it is still running and closes the pty.
func (s *Session) Close() error {
	if !s.waited && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
		s.waited = true
	}
	return s.Console.Close()
}
