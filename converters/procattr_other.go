//go:build !unix

package converters

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
