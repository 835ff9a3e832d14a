//go:build linux

package stage

import "syscall"

// setPdeathsig kills search tools if fuzz itself dies mid-run.
func setPdeathsig(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = syscall.SIGKILL
}
