//go:build !windows

package stage

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

type unixProcessController struct{}

func newPlatformProcessController() ProcessController {
	return &unixProcessController{}
}

// Start puts the command in its own process group and starts it, so that
// signals reach any helpers the tool forks.
func (u *unixProcessController) Start(cmd *exec.Cmd) error {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	setPdeathsig(cmd.SysProcAttr)
	return cmd.Start()
}

// Terminate sends SIGTERM to the process group (negative PID targets the group).
func (u *unixProcessController) Terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return errors.New(errProcessNotStarted)
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

// Kill sends SIGKILL to the process group.
func (u *unixProcessController) Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return errors.New(errProcessNotStarted)
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// Wait waits for the process to exit. If ctx is cancelled, it sends Terminate,
// waits up to gracePeriod for the process to exit, then sends Kill.
func (u *unixProcessController) Wait(ctx context.Context, cmd *exec.Cmd, gracePeriod time.Duration) error {
	if cmd.Process == nil {
		return errors.New(errProcessNotStarted)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = u.Terminate(cmd)

		timer := time.NewTimer(gracePeriod)
		defer timer.Stop()
		select {
		case err := <-done:
			return err
		case <-timer.C:
			_ = u.Kill(cmd)
			return <-done
		}
	}
}

// killedByBrokenPipe reports whether the process died of SIGPIPE, which
// is how well-behaved tools stop once their reader goes away.
func killedByBrokenPipe(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGPIPE
}
