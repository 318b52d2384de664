//go:build !windows

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr runs the child in its own process group so that stop
// signals reach anything it spawned.
func setProcAttr(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// processGroup returns the group id of a started child. With Setpgid the
// child leads its own group, so this stays valid after it is reaped.
func processGroup(cmd *exec.Cmd) int {
	return cmd.Process.Pid
}

func terminate(p *os.Process, pgid int) error {
	return signalGroup(p, pgid, syscall.SIGTERM)
}

func kill(p *os.Process, pgid int) error {
	return signalGroup(p, pgid, syscall.SIGKILL)
}

func signalGroup(p *os.Process, pgid int, sig syscall.Signal) error {
	if pgid > 0 {
		if err := syscall.Kill(-pgid, sig); err == nil {
			return nil
		}
	}
	if p == nil {
		return nil
	}
	// Fall back to the main process only
	return p.Signal(sig)
}
