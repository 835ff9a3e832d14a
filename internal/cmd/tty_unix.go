//go:build !windows

package cmd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openTTY opens the controlling terminal, so the picker can draw while
// stdout is captured by the caller.
func openTTY() (*terminal, error) {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("no TTY available: %w", err)
	}
	return &terminal{in: f, out: f}, nil
}

// width returns the terminal width in columns, or 0 if unknown.
func (t *terminal) width() int {
	ws, err := unix.IoctlGetWinsize(int(t.out.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}

func (t *terminal) Close() error {
	return t.in.Close()
}
