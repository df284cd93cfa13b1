//go:build !windows

package killtree

import (
	"os/exec"
	stdruntime "runtime"
	"syscall"
	"testing"
	"time"
)

func TestKillReapsSpawnedChildren(t *testing.T) {
	if stdruntime.GOOS == "windows" {
		t.Skip("tree termination tests skipped on windows")
	}

	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & sleep 30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid

	// Give the shell a moment to fork its background child.
	time.Sleep(100 * time.Millisecond)

	if err := Kill(pid); err != nil {
		t.Fatalf("kill tree: %v", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()
	select {
	case <-waitErr:
	case <-time.After(2 * time.Second):
		t.Fatalf("root process still running after tree kill")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		// Signal 0 probes for existence of any group member.
		err := syscall.Kill(-pid, syscall.Signal(0))
		if err == syscall.ESRCH {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process group %d still alive: %v", pid, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestKillMissingProcessIsSuccess(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if err := Kill(pid); err != nil {
		t.Fatalf("killing an exited tree should be success, got %v", err)
	}
}

func TestKillIgnoresNonPositivePids(t *testing.T) {
	if err := Kill(0); err != nil {
		t.Fatalf("pid 0: %v", err)
	}
	if err := Kill(-42); err != nil {
		t.Fatalf("negative pid: %v", err)
	}
}
