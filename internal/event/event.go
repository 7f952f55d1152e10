// Package event provides the in-process pub/sub bus connecting the session
// core to its consumers (HTTP stream, history recorder, metrics).
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topics published by the session core.
const (
	TopicConnected       = "ups.connected"
	TopicDisconnected    = "ups.disconnected"
	TopicStatusUpdated   = "ups.status.updated"
	TopicPowerTransition = "ups.power.transition"
	TopicPollError       = "ups.poll.error"
)

// Event is a single bus message.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New builds an Event with a fresh ID and the current UTC timestamp.
func New(topic, source string, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Handler receives published events. Handlers must not block; long work
// belongs on the handler's own goroutine.
type Handler func(ctx context.Context, e Event)
