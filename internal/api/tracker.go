package api

import (
	"sync"

	"github.com/mlegge/hatchd/internal/events"
	"github.com/mlegge/hatchd/internal/protocol"
)

// Tracker folds the session's event stream into a status snapshot. It is
// safe for concurrent Apply and Status calls.
type Tracker struct {
	mu     sync.RWMutex
	status SessionStatus
}

// NewTracker constructs a tracker for the given session identifier.
func NewTracker(session string) *Tracker {
	return &Tracker{status: SessionStatus{
		Session:  session,
		Keystore: ProcessStatus{Running: true},
		Runtime:  ProcessStatus{Running: true},
	}}
}

// Apply updates the snapshot from one event. Wire it to the session bus.
func (t *Tracker) Apply(evt events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.UpdatedAt = evt.Timestamp

	switch evt.Type {
	case events.EventTypeStatus:
		t.status.State = evt.State.String()
		t.touch(evt.Process, evt)
		if evt.State == protocol.StateReady && t.status.Port != "" {
			t.status.Ready = true
		}
	case events.EventTypePort:
		t.status.Port = evt.Port
		t.touch(evt.Process, evt)
		if t.status.State == protocol.StateReady.String() {
			t.status.Ready = true
		}
	case events.EventTypeError:
		t.status.Errors++
		t.touch(evt.Process, evt)
	case events.EventTypeKeystoreExited:
		t.status.Keystore.Running = false
		t.status.Keystore.LastEvent = evt.Timestamp
	case events.EventTypeRuntimeExited:
		t.status.Runtime.Running = false
		t.status.Runtime.LastEvent = evt.Timestamp
	}
}

func (t *Tracker) touch(proc events.Process, evt events.Event) {
	switch proc {
	case events.ProcessKeystore:
		t.status.Keystore.LastEvent = evt.Timestamp
	case events.ProcessRuntime:
		t.status.Runtime.LastEvent = evt.Timestamp
	}
}

// Status returns the current snapshot.
func (t *Tracker) Status() SessionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

var _ Controller = (*Tracker)(nil)
