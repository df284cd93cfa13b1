// Package docker implements the launch backend that runs the supervised
// services as containers. The status protocol is unchanged: the container's
// demuxed stdout feeds the same line decoder as a local process would.
package docker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/mlegge/hatchd/internal/launch"
)

type launcherImpl struct {
	client     *client.Client
	clientOnce sync.Once
	clientErr  error
}

// New returns a Docker backed launcher implementation.
func New() launch.Launcher {
	return &launcherImpl{}
}

func (l *launcherImpl) getClient() (*client.Client, error) {
	l.clientOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			l.clientErr = err
			return
		}
		l.client = cli
	})
	return l.client, l.clientErr
}

func (l *launcherImpl) Start(ctx context.Context, spec launch.Spec) (launch.Handle, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("docker launcher for %s requires an image", spec.Name)
	}

	cli, err := l.getClient()
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if err := ensureImage(ctx, cli, spec.Image); err != nil {
		return nil, err
	}

	containerCfg, hostCfg, err := buildConfigs(spec)
	if err != nil {
		return nil, err
	}

	createResp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("container create: %w", err)
	}
	containerID := createResp.ID

	if err := cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("container start: %w", err)
	}

	h := newDockerHandle(cli, containerID, spec.Name)
	h.startLogStreamer()
	h.startWaiter()
	return h, nil
}

type dockerHandle struct {
	cli         *client.Client
	containerID string
	name        string

	lines   chan launch.LogEntry
	logCtx  context.Context
	logStop context.CancelFunc

	done    chan struct{}
	exitErr error
}

func newDockerHandle(cli *client.Client, id, name string) *dockerHandle {
	logCtx, logCancel := context.WithCancel(context.Background())
	return &dockerHandle{
		cli:         cli,
		containerID: id,
		name:        name,
		lines:       make(chan launch.LogEntry, 128),
		logCtx:      logCtx,
		logStop:     logCancel,
		done:        make(chan struct{}),
	}
}

func (h *dockerHandle) startLogStreamer() {
	go func() {
		defer close(h.lines)
		reader, err := h.cli.ContainerLogs(h.logCtx, h.containerID, types.ContainerLogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     true,
			Tail:       "all",
		})
		if err != nil {
			h.lines <- launch.LogEntry{
				Source: launch.LogSourceSystem,
				Err:    fmt.Errorf("%s container logs: %w", h.name, err),
			}
			return
		}
		defer reader.Close()

		stdout := newLineWriter(h.logCtx, h.lines, launch.LogSourceStdout)
		stderr := newLineWriter(h.logCtx, h.lines, launch.LogSourceStderr)
		if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil && h.logCtx.Err() == nil {
			h.lines <- launch.LogEntry{
				Source: launch.LogSourceSystem,
				Err:    fmt.Errorf("%s log stream: %w", h.name, err),
			}
		}
		stdout.Close()
		stderr.Close()
	}()
}

func (h *dockerHandle) startWaiter() {
	go func() {
		statusCh, errCh := h.cli.ContainerWait(context.Background(), h.containerID, container.WaitConditionNextExit)
		select {
		case err := <-errCh:
			h.exitErr = err
		case resp := <-statusCh:
			if resp.Error != nil {
				h.exitErr = errors.New(resp.Error.Message)
			} else if resp.StatusCode != 0 {
				h.exitErr = fmt.Errorf("container exited with status %d", resp.StatusCode)
			}
		}
		close(h.done)
	}()
}

// PID is not meaningful across the container boundary.
func (h *dockerHandle) PID() int {
	return 0
}

func (h *dockerHandle) Lines() <-chan launch.LogEntry {
	return h.lines
}

func (h *dockerHandle) Done() <-chan struct{} {
	return h.done
}

func (h *dockerHandle) ExitErr() error {
	select {
	case <-h.done:
		return h.exitErr
	default:
		return nil
	}
}

// KillTree kills and removes the container; the container boundary already
// confines the whole process tree.
func (h *dockerHandle) KillTree(ctx context.Context) error {
	defer h.logStop()
	if err := h.cli.ContainerKill(ctx, h.containerID, "SIGKILL"); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container kill: %w", err)
	}
	if err := h.cli.ContainerRemove(ctx, h.containerID, types.ContainerRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

func (h *dockerHandle) Kill() error {
	err := h.cli.ContainerKill(context.Background(), h.containerID, "SIGKILL")
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container kill: %w", err)
	}
	return nil
}

// lineWriter splits a demuxed container stream into complete lines,
// buffering trailing partial data until the next write or Close.
type lineWriter struct {
	ctx    context.Context
	ch     chan<- launch.LogEntry
	source string
	buf    bytes.Buffer
	mu     sync.Mutex
}

func newLineWriter(ctx context.Context, ch chan<- launch.LogEntry, source string) *lineWriter {
	return &lineWriter{ctx: ctx, ch: ch, source: source}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(p)
	reader := bufio.NewReader(bytes.NewReader(p))
	for {
		segment, err := reader.ReadBytes('\n')
		if len(segment) > 0 {
			if segment[len(segment)-1] == '\n' {
				w.buf.Write(segment[:len(segment)-1])
				w.emit(w.buf.String())
				w.buf.Reset()
			} else {
				w.buf.Write(segment)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}
	}
	return total, nil
}

func (w *lineWriter) emit(line string) {
	if line == "" {
		return
	}
	select {
	case w.ch <- launch.LogEntry{Message: line, Source: w.source}:
	case <-w.ctx.Done():
	}
}

func (w *lineWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func ensureImage(ctx context.Context, cli *client.Client, imageName string) error {
	_, _, err := cli.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}
	reader, err := cli.ImagePull(ctx, imageName, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func buildConfigs(spec launch.Spec) (*container.Config, *container.HostConfig, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, portSpec := range spec.Ports {
		mappings, err := nat.ParsePortSpec(portSpec)
		if err != nil {
			return nil, nil, fmt.Errorf("parse port %q: %w", portSpec, err)
		}
		for _, mapping := range mappings {
			exposed[mapping.Port] = struct{}{}
			bindings[mapping.Port] = append(bindings[mapping.Port], mapping.Binding)
		}
	}

	var cmdSlice []string
	if len(spec.Command) > 0 {
		cmdSlice = append([]string(nil), spec.Command...)
	}

	config := &container.Config{
		Image:        spec.Image,
		Env:          env,
		Cmd:          strslice.StrSlice(cmdSlice),
		ExposedPorts: exposed,
	}
	host := &container.HostConfig{PortBindings: bindings}
	return config, host, nil
}
