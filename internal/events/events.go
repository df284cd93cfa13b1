// Package events carries the typed lifecycle notifications emitted by a
// supervised session.
package events

import (
	"time"

	"github.com/mlegge/hatchd/internal/protocol"
)

// Process identifies which supervised child an event refers to.
type Process string

const (
	ProcessKeystore Process = "keystore"
	ProcessRuntime  Process = "runtime"
)

// EventType captures the lifecycle notifications published on the bus.
type EventType string

const (
	// EventTypeStatus fires once per decoded state-signal line.
	EventTypeStatus EventType = "status"
	// EventTypePort fires once per decoded port-announcement line.
	EventTypePort EventType = "port"
	// EventTypeError fires for stream-level failures and child-reported
	// errors. Purely observational; it never alters control flow.
	EventTypeError EventType = "error"
	// EventTypeKeystoreExited fires once when the keystore's streams close.
	EventTypeKeystoreExited EventType = "keystore-exited"
	// EventTypeRuntimeExited fires once when the runtime's streams close.
	EventTypeRuntimeExited EventType = "runtime-exited"
)

// Event is a single lifecycle or error notification.
type Event struct {
	Timestamp time.Time
	Session   string
	Process   Process
	Type      EventType
	State     protocol.State
	Port      string
	Message   string
	Source    string
	Err       error
}

// ExitEventFor maps a process to its exit event type.
func ExitEventFor(proc Process) EventType {
	if proc == ProcessKeystore {
		return EventTypeKeystoreExited
	}
	return EventTypeRuntimeExited
}
