package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Exec runs an external tool as a pipeline stage. The tool reads the
// previous stage's output on stdin and its stdout feeds the next stage.
type Exec struct {
	Path string   // Executable name (resolved on PATH) or path
	Args []string // Arguments, not including the executable
	Dir  string   // Working directory; empty means the current one

	// OKExitCodes lists exit codes that count as success. Empty means {0}.
	OKExitCodes []int

	// GracePeriod is the delay between SIGTERM and SIGKILL on teardown.
	GracePeriod time.Duration

	// Controller starts and stops the process. Nil uses the platform default.
	Controller ProcessController
}

// Compile-time check that Exec implements Stage.
var _ Stage = (*Exec)(nil)

// Name returns the tool's base name, e.g. "rg".
func (e *Exec) Name() string {
	return strings.TrimSuffix(filepath.Base(e.Path), ".exe")
}

// Run starts the tool and streams in -> tool -> out until the tool exits
// or ctx is done.
func (e *Exec) Run(ctx context.Context, in io.Reader, out io.Writer) Outcome {
	name := e.Name()
	if ctx.Err() != nil {
		return canceled(ctx, name)
	}

	cmd := exec.Command(e.Path, e.Args...) //nolint:gosec // G204: tool and arguments come from user config
	cmd.Dir = e.Dir
	stderr := NewTailBuffer(DefaultTailSize)
	cmd.Stderr = stderr
	// Bounds how long Wait blocks on pipes held open by grandchildren.
	cmd.WaitDelay = e.grace()

	var stdin io.WriteCloser
	if in != nil {
		p, err := cmd.StdinPipe()
		if err != nil {
			return failed(name, fmt.Errorf("%s stdin: %w", name, err))
		}
		stdin = p
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return failed(name, fmt.Errorf("%s stdout: %w", name, err))
	}

	proc := e.controller()
	if err := proc.Start(cmd); err != nil {
		if isNotFound(err) {
			return Outcome{Stage: name, Status: NotFound, Err: err}
		}
		return failed(name, fmt.Errorf("starting %s: %w", name, err))
	}

	if stdin != nil {
		go func() {
			// Stops on EOF, on a closed input pipe, or on EPIPE once the
			// tool has stopped reading.
			_, _ = io.Copy(stdin, in)
			_ = stdin.Close()
		}()
	}

	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, stdout)
		if err != nil {
			// Downstream is gone; closing our end lets the tool die of SIGPIPE.
			_ = stdout.Close()
		}
		copied <- err
	}()

	var copyErr error
	select {
	case copyErr = <-copied:
	case <-ctx.Done():
	}

	waitErr := proc.Wait(ctx, cmd, e.grace())
	if ctx.Err() != nil {
		return canceled(ctx, name)
	}
	return e.classify(cmd, copyErr, waitErr, stderr)
}

// classify turns the copy and wait results of a finished process into an Outcome.
func (e *Exec) classify(cmd *exec.Cmd, copyErr, waitErr error, stderr *TailBuffer) Outcome {
	name := e.Name()
	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	if copyErr != nil {
		if IsBrokenPipe(copyErr) {
			return completed(name, code)
		}
		return failed(name, fmt.Errorf("reading %s output: %w", name, copyErr))
	}

	if waitErr != nil && !errors.Is(waitErr, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return failed(name, waitErr)
		}
		if killedByBrokenPipe(exitErr.ProcessState) {
			return completed(name, code)
		}
	}

	if !e.accepts(code) {
		err := fmt.Errorf("exit status %d", code)
		if msg := stderr.Summary(); msg != "" {
			err = fmt.Errorf("exit status %d: %s", code, msg)
		}
		return Outcome{Stage: name, Status: Failed, ExitCode: code, Err: err}
	}
	return completed(name, code)
}

func (e *Exec) accepts(code int) bool {
	if len(e.OKExitCodes) == 0 {
		return code == 0
	}
	return slices.Contains(e.OKExitCodes, code)
}

func (e *Exec) grace() time.Duration {
	if e.GracePeriod > 0 {
		return e.GracePeriod
	}
	return DefaultGracePeriod
}

func (e *Exec) controller() ProcessController {
	if e.Controller != nil {
		return e.Controller
	}
	return NewProcessController()
}

// isNotFound reports whether a start error means the executable is missing.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
