//go:build windows

package killtree

import (
	"errors"
	"os"
)

// Kill terminates only the top-level process on Windows. Reclaiming the full
// tree would require job objects or similar host-specific integration.
func Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
