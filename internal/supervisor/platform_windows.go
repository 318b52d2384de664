//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

func processGroup(cmd *exec.Cmd) int { return 0 }

// Windows has no SIGTERM equivalent for console children; stop is a kill.
func terminate(p *os.Process, _ int) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func kill(p *os.Process, pgid int) error {
	return terminate(p, pgid)
}
