//go:build !unix

package shell

import (
	"os"
	"os/exec"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
}
