package testutil

import (
	"context"
	"sync"

	"github.com/tbarrett/upswatch/internal/event"
)

// EventRecorder captures every event published on a bus for later
// inspection.
type EventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

// RecordEvents attaches a recorder to the bus. Detach is handled by the
// returned unsubscribe function; callers who let the bus die with the test
// can ignore it.
func RecordEvents(bus *event.Bus) (*EventRecorder, func()) {
	r := &EventRecorder{}
	unsub := bus.SubscribeAll(func(_ context.Context, e event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r, unsub
}

// Events returns a copy of all recorded events.
func (r *EventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByTopic returns recorded events matching topic.
func (r *EventRecorder) ByTopic(topic string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
