// Package supervisor runs one supervised session: the keystore process, the
// runtime process that depends on it, and the startup/shutdown choreography
// between them.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlegge/hatchd/internal/config"
	"github.com/mlegge/hatchd/internal/events"
	"github.com/mlegge/hatchd/internal/launch"
	"github.com/mlegge/hatchd/internal/metrics"
	"github.com/mlegge/hatchd/internal/protocol"
)

// Ready carries the outcome of a completed startup: the announced app port
// and the two live handles, passed forward to whoever initiated startup.
type Ready struct {
	Port     string
	Keystore launch.Handle
	Runtime  launch.Handle
}

// Session supervises one keystore/runtime pair from launch to teardown.
// A session is single-use: once shut down, its handles are discarded and
// there is no restart path.
type Session struct {
	id       string
	cfg      *config.Config
	launcher launch.Launcher
	bus      *events.Bus

	mu       sync.Mutex
	started  bool
	keystore launch.Handle
	runtime  launch.Handle

	// Startup synchronizer state, owned by the event loop goroutine.
	sawReady  bool
	sawPort   bool
	port      string
	completed bool

	readyOnce sync.Once
	readyErr  error
	readyCh   chan struct{}

	loopDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewSession constructs an idle session for the given configuration.
func NewSession(cfg *config.Config, launcher launch.Launcher) *Session {
	return &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		launcher: launcher,
		bus:      events.NewBus(),
		readyCh:  make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// ID returns the session identifier stamped on every published event.
func (s *Session) ID() string {
	return s.id
}

// Events exposes the session's event bus. Subscriptions are live for the
// session's lifetime; events published before a subscription are not
// replayed.
func (s *Session) Events() *events.Bus {
	return s.bus
}

type observation struct {
	proc   events.Process
	entry  launch.LogEntry
	exited bool
}

// Start launches the keystore first (it must be listening before the
// runtime needs it), then the runtime, and begins decoding their output.
// It returns once both processes are spawned; readiness is observed via
// WaitReady. If the runtime fails to spawn the keystore tree is reclaimed
// before returning.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("session already started")
	}

	keystore, err := s.launcher.Start(ctx, launch.Spec{
		Name:    string(events.ProcessKeystore),
		Command: []string{s.cfg.Keystore.Binary, "--lair-dir", s.cfg.Keystore.Dir},
		Workdir: s.cfg.Workdir,
		Image:   s.cfg.Keystore.Image,
	})
	if err != nil {
		return fmt.Errorf("start keystore: %w", err)
	}

	runtime, err := s.launcher.Start(ctx, launch.Spec{
		Name:    string(events.ProcessRuntime),
		Command: append([]string{s.cfg.Runtime.Binary}, s.cfg.Runtime.Args...),
		Env:     s.cfg.Runtime.Env,
		Workdir: s.cfg.Workdir,
		Image:   s.cfg.Runtime.Image,
		Ports:   s.cfg.Runtime.Ports,
	})
	if err != nil {
		if killErr := keystore.KillTree(ctx); killErr != nil {
			err = errors.Join(err, killErr)
		}
		return fmt.Errorf("start runtime: %w", err)
	}

	s.keystore = keystore
	s.runtime = runtime
	s.started = true

	obs := make(chan observation, 64)
	go observe(events.ProcessKeystore, keystore, obs)
	go observe(events.ProcessRuntime, runtime, obs)
	go s.loop(obs)
	return nil
}

func observe(proc events.Process, h launch.Handle, obs chan<- observation) {
	for entry := range h.Lines() {
		obs <- observation{proc: proc, entry: entry}
	}
	obs <- observation{proc: proc, exited: true}
}

// loop is the single consumer of both processes' observations. Events from
// one stream keep their stream's order; no ordering exists between the two
// streams. Because only this goroutine touches the synchronizer state, the
// two completion flags need no lock.
func (s *Session) loop(obs <-chan observation) {
	defer close(s.loopDone)
	exits := 0
	for o := range obs {
		if o.exited {
			exits++
			s.publish(events.Event{
				Process: o.proc,
				Type:    events.ExitEventFor(o.proc),
				Source:  launch.LogSourceSystem,
			})
			if o.proc == events.ProcessRuntime && !s.completed {
				s.failReady(ErrExitedDuringStartup)
			}
			if exits == 2 {
				return
			}
			continue
		}
		s.handleEntry(o.proc, o.entry)
	}
}

func (s *Session) handleEntry(proc events.Process, entry launch.LogEntry) {
	if entry.Err != nil {
		metrics.IncError(string(proc))
		s.publish(events.Event{
			Process: proc,
			Type:    events.EventTypeError,
			Source:  entry.Source,
			Err:     entry.Err,
		})
		return
	}

	if entry.Source == launch.LogSourceStderr {
		// Child-reported errors are observational, never fatal here.
		metrics.IncError(string(proc))
		s.publish(events.Event{
			Process: proc,
			Type:    events.EventTypeError,
			Source:  entry.Source,
			Message: entry.Message,
			Err:     fmt.Errorf("%s: %s", proc, entry.Message),
		})
		return
	}

	if proc != events.ProcessRuntime {
		// The keystore has no status protocol; its stdout is noise.
		return
	}

	switch sig := protocol.Interpret(entry.Message); sig.Kind {
	case protocol.SignalState:
		metrics.ObserveStateSignal(sig.State.String())
		s.publish(events.Event{
			Process: proc,
			Type:    events.EventTypeStatus,
			State:   sig.State,
			Message: entry.Message,
			Source:  entry.Source,
		})
		if sig.State == protocol.StateReady {
			s.sawReady = true
			s.maybeComplete()
		}
	case protocol.SignalPort:
		// Later announcements overwrite the port but never re-fire
		// completion.
		s.mu.Lock()
		s.port = sig.Port
		s.mu.Unlock()
		s.sawPort = true
		s.publish(events.Event{
			Process: proc,
			Type:    events.EventTypePort,
			Port:    sig.Port,
			Message: entry.Message,
			Source:  entry.Source,
		})
		s.maybeComplete()
	}
}

func (s *Session) maybeComplete() {
	if s.completed || !s.sawReady || !s.sawPort {
		return
	}
	s.completed = true
	metrics.SetSessionReady(true)
	s.readyOnce.Do(func() { close(s.readyCh) })
}

func (s *Session) failReady(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.readyCh)
	})
}

func (s *Session) publish(evt events.Event) {
	evt.Timestamp = time.Now()
	evt.Session = s.id
	s.bus.Publish(evt)
}

// WaitReady blocks until startup completes, the configured startup bound
// elapses, or ctx is cancelled. Completion requires both the terminal ready
// state and a port announcement, in either order, and resolves exactly once
// per session.
func (s *Session) WaitReady(ctx context.Context) (*Ready, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	if timeout := s.cfg.EffectiveStartupTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-s.readyCh:
		if s.readyErr != nil {
			return nil, s.readyErr
		}
		keystore, runtime := s.handles()
		s.mu.Lock()
		port := s.port
		s.mu.Unlock()
		return &Ready{Port: port, Keystore: keystore, Runtime: runtime}, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrStartupTimeout
		}
		return nil, ctx.Err()
	}
}

func (s *Session) handles() (launch.Handle, launch.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keystore, s.runtime
}

// Shutdown runs the termination protocol against whichever handles exist.
// It is idempotent and safe to call whether or not startup ever completed;
// with no live handles it returns immediately. Afterwards the handles are
// discarded and the session cannot be restarted.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		keystore, runtime := s.handles()

		start := time.Now()
		coord := NewCoordinator(s.cfg.EffectiveShutdownTimeout(), s.reportKillFailure)
		s.shutdownErr = coord.Shutdown(ctx, keystore, runtime)
		metrics.ObserveShutdownDuration(time.Since(start))
		metrics.SetSessionReady(false)

		s.mu.Lock()
		started := s.started
		s.keystore = nil
		s.runtime = nil
		s.mu.Unlock()

		// Drain the event loop so no exit events are published after
		// Shutdown returns. Skipped when the kill did not land in budget;
		// the loop then ends whenever the streams finally close.
		if started && s.shutdownErr == nil {
			select {
			case <-s.loopDone:
			case <-ctx.Done():
			}
		}
	})
	return s.shutdownErr
}

func (s *Session) reportKillFailure(proc events.Process, err error) {
	metrics.IncError(string(proc))
	s.publish(events.Event{
		Process: proc,
		Type:    events.EventTypeError,
		Source:  launch.LogSourceSystem,
		Err:     fmt.Errorf("terminate %s: %w", proc, err),
	})
}
