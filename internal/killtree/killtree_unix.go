//go:build !windows

package killtree

import (
	"errors"
	"fmt"
	"syscall"
)

// Kill signals the entire process tree rooted at pid with SIGKILL.
// Descendants are signalled before the root so reparenting races shrink the
// window for escapees. A tree that is already gone is success, not an error.
func Kill(pid int) error {
	if pid <= 0 {
		return nil
	}

	for _, child := range descendants(pid) {
		if err := syscall.Kill(child, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("kill descendant %d: %w", child, err)
		}
	}

	// The supervised process is its own group leader (Setpgid at launch),
	// so the group signal covers members the snapshot missed.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}
