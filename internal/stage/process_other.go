//go:build !linux && !windows

package stage

import "syscall"

// setPdeathsig is a no-op outside Linux; Pdeathsig is not supported there.
func setPdeathsig(_ *syscall.SysProcAttr) {}
