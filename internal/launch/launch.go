// Package launch defines the backend interface used to start and terminate
// the supervised keystore and runtime processes.
package launch

import "context"

// Log sources attached to decoded lines.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// LogEntry is one decoded line from a child's output, or a decoder-level
// failure when Err is set. Partial trailing data is buffered by the decoder
// until a newline arrives or the stream closes.
type LogEntry struct {
	Message string
	Source  string
	Err     error
}

// Spec describes one process to launch. Command paths arrive already
// resolved and absolute; argument vectors are treated as opaque and
// pre-validated. Image and Ports apply to container-backed launchers only.
type Spec struct {
	Name    string
	Command []string
	Env     map[string]string
	Workdir string
	Image   string
	Ports   []string
}

// Handle is an opaque reference to one spawned process. Ownership is
// exclusive: the launcher holds it during startup, the session reads it, and
// the shutdown coordinator consumes it terminally. A handle must not be
// reused after shutdown takes it.
type Handle interface {
	// PID returns the root process identifier, or 0 when the backend does
	// not expose one.
	PID() int

	// Lines returns the decoded output stream, closed once both of the
	// process's streams have drained.
	Lines() <-chan LogEntry

	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}

	// ExitErr reports the exit outcome. Only meaningful after Done.
	ExitErr() error

	// KillTree issues a best-effort recursive termination of the entire
	// process tree rooted at this handle. It returns once the request has
	// been issued; completion is observed via Done.
	KillTree(ctx context.Context) error

	// Kill sends a direct termination signal to the root process only.
	// A process that already exited is treated as success.
	Kill() error
}

// Launcher starts processes for a supervised session.
type Launcher interface {
	Start(ctx context.Context, spec Spec) (Handle, error)
}

// Registry maps launcher identifiers to their concrete implementations.
type Registry map[string]Launcher

// Clone returns a shallow copy of the registry, allowing callers to avoid
// accidental mutation of shared maps.
func (r Registry) Clone() Registry {
	dup := make(Registry, len(r))
	for k, v := range r {
		dup[k] = v
	}
	return dup
}
