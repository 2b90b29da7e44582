//go:build unix

package converters

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the tool in its own process group so cancellation
// also reaches the helpers it forks (soffice.bin, ffmpeg filters).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
