//go:build windows

package cmd

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// openTTY opens the console input and output buffers, so the picker can
// draw while stdout is captured by the caller.
func openTTY() (*terminal, error) {
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("no console available: %w", err)
	}
	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("no console available: %w", err)
	}
	return &terminal{in: in, out: out}, nil
}

// width returns the console width in columns, or 0 if unknown.
func (t *terminal) width() int {
	var info windows.ConsoleScreenBufferInfo
	if err := windows.GetConsoleScreenBufferInfo(windows.Handle(t.out.Fd()), &info); err != nil {
		return 0
	}
	return int(info.Window.Right-info.Window.Left) + 1
}

func (t *terminal) Close() error {
	err := t.in.Close()
	if cerr := t.out.Close(); err == nil {
		err = cerr
	}
	return err
}
