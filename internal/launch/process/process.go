// Package process implements the launch backend that runs the supervised
// binaries as local OS processes.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mlegge/hatchd/internal/killtree"
	"github.com/mlegge/hatchd/internal/launch"
)

type launcherImpl struct{}

// New constructs a launcher that executes specs as local processes.
func New() launch.Launcher {
	return &launcherImpl{}
}

func (l *launcherImpl) Start(ctx context.Context, spec launch.Spec) (launch.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("process launcher for %s requires a command", spec.Name)
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
	}

	env := os.Environ()
	if spec.Env != nil {
		overrides := make([]string, 0, len(spec.Env))
		for k, v := range spec.Env {
			overrides = append(overrides, fmt.Sprintf("%s=%s", k, v))
		}
		env = append(env, overrides...)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stderr: %w", spec.Name, err)
	}

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	h := &processHandle{
		name:  spec.Name,
		cmd:   cmd,
		lines: make(chan launch.LogEntry, 64),
		done:  make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go h.streamLines(stdout, launch.LogSourceStdout, &wg)
	go h.streamLines(stderr, launch.LogSourceStderr, &wg)
	go func() {
		// Draining both pipes before Wait keeps exec from closing them
		// under the decoders.
		wg.Wait()
		close(h.lines)
		h.exitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

type processHandle struct {
	name    string
	cmd     *exec.Cmd
	lines   chan launch.LogEntry
	done    chan struct{}
	exitErr error
}

func (h *processHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *processHandle) Lines() <-chan launch.LogEntry {
	return h.lines
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}

func (h *processHandle) ExitErr() error {
	select {
	case <-h.done:
		return h.exitErr
	default:
		return nil
	}
}

func (h *processHandle) KillTree(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return killtree.Kill(h.PID())
}

func (h *processHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", h.name, err)
	}
	return nil
}

func (h *processHandle) streamLines(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		h.lines <- launch.LogEntry{Message: line, Source: source}
	}
	if err := scanner.Err(); err != nil {
		h.lines <- launch.LogEntry{
			Source: source,
			Err:    fmt.Errorf("%s %s stream: %w", h.name, source, err),
		}
	}
}
