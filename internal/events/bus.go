package events

import (
	"sort"
	"sync"
)

// Handler consumes one published event. Handlers run synchronously on the
// publisher's goroutine; a handler must not cancel its own subscription from
// inside the callback.
type Handler func(Event)

// Bus is a many-subscriber publish surface owned by a session. Delivery is
// synchronous and follows publish order; subscribers see every event
// published while they are registered and nothing earlier (no buffering or
// replay).
type Bus struct {
	mu   sync.Mutex
	subs map[int]Handler
	next int
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers a handler and returns its cancel function. Cancel is
// idempotent and tied to the session's lifetime: once the session is torn
// down no further events arrive.
func (b *Bus) Subscribe(fn Handler) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers evt to every currently registered subscriber in
// registration order. Sessions publish from a single goroutine, so
// subscribers observe one total order without further locking.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[id]
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
