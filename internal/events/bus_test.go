package events

import (
	"testing"

	"github.com/mlegge/hatchd/internal/protocol"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus()

	var got []EventType
	cancel := bus.Subscribe(func(evt Event) {
		got = append(got, evt.Type)
	})
	defer cancel()

	published := []EventType{
		EventTypeStatus,
		EventTypeStatus,
		EventTypePort,
		EventTypeStatus,
		EventTypeKeystoreExited,
	}
	for _, typ := range published {
		bus.Publish(Event{Type: typ})
	}

	if len(got) != len(published) {
		t.Fatalf("delivered %d events, want %d", len(got), len(published))
	}
	for i, typ := range published {
		if got[i] != typ {
			t.Fatalf("event %d = %s, want %s", i, got[i], typ)
		}
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	var first, second []protocol.State
	bus.Subscribe(func(evt Event) { first = append(first, evt.State) })
	bus.Subscribe(func(evt Event) { second = append(second, evt.State) })

	bus.Publish(Event{Type: EventTypeStatus, State: protocol.StateCreatingKeys})
	bus.Publish(Event{Type: EventTypeStatus, State: protocol.StateReady})

	for _, seen := range [][]protocol.State{first, second} {
		if len(seen) != 2 || seen[0] != protocol.StateCreatingKeys || seen[1] != protocol.StateReady {
			t.Fatalf("unexpected delivery %v", seen)
		}
	}
}

func TestBusNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventTypeStatus, State: protocol.StateFirstRun})

	var got []Event
	bus.Subscribe(func(evt Event) { got = append(got, evt) })
	if len(got) != 0 {
		t.Fatalf("late subscriber must not see earlier events, got %v", got)
	}

	bus.Publish(Event{Type: EventTypePort, Port: "42101"})
	if len(got) != 1 || got[0].Port != "42101" {
		t.Fatalf("late subscriber missed live event, got %v", got)
	}
}

func TestBusCancelStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	cancel := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Type: EventTypeStatus})
	cancel()
	cancel() // idempotent
	bus.Publish(Event{Type: EventTypeStatus})

	if count != 1 {
		t.Fatalf("expected exactly one delivery, got %d", count)
	}
}

func TestExitEventFor(t *testing.T) {
	if ExitEventFor(ProcessKeystore) != EventTypeKeystoreExited {
		t.Fatalf("keystore exit mapped incorrectly")
	}
	if ExitEventFor(ProcessRuntime) != EventTypeRuntimeExited {
		t.Fatalf("runtime exit mapped incorrectly")
	}
}
