package stage

import (
	"context"
	"os/exec"
	"time"
)

// DefaultGracePeriod is the time to wait between terminate and kill signals.
const DefaultGracePeriod = 200 * time.Millisecond

const errProcessNotStarted = "process not started"

// ProcessController manages subprocess lifecycle with platform-appropriate signals.
type ProcessController interface {
	// Start configures platform-specific process group settings and starts the command.
	Start(cmd *exec.Cmd) error

	// Terminate asks the process group to stop.
	// On Unix: SIGTERM to pgid. On Windows: GenerateConsoleCtrlEvent.
	Terminate(cmd *exec.Cmd) error

	// Kill forcefully terminates the process group.
	Kill(cmd *exec.Cmd) error

	// Wait waits for the process to complete with cancellation support.
	// If ctx is cancelled, sends Terminate, waits gracePeriod, then Kill.
	Wait(ctx context.Context, cmd *exec.Cmd, gracePeriod time.Duration) error
}

// NewProcessController creates a platform-appropriate ProcessController.
func NewProcessController() ProcessController {
	return newPlatformProcessController()
}
