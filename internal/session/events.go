package session

import "github.com/tbarrett/upswatch/internal/status"

// ConnectedEvent is the payload for event.TopicConnected.
type ConnectedEvent struct {
	Device string `json:"device"`
	Host   string `json:"host"`
}

// DisconnectedEvent is the payload for event.TopicDisconnected.
type DisconnectedEvent struct {
	Device string `json:"device"`
}

// StatusEvent is the payload for event.TopicStatusUpdated, carrying the
// freshly decoded snapshot after a successful poll tick.
type StatusEvent struct {
	Device string        `json:"device"`
	Status status.Status `json:"status"`
}

// PowerTransitionEvent is the payload for event.TopicPowerTransition,
// emitted when a poll tick observes a different power state than the
// previous one (e.g. mains lost, device now on battery).
type PowerTransitionEvent struct {
	Device string            `json:"device"`
	From   status.PowerState `json:"from"`
	To     status.PowerState `json:"to"`
}

// PollErrorEvent is the payload for event.TopicPollError. A poll failure is
// transient: the loop keeps running at its fixed interval.
type PollErrorEvent struct {
	Device  string `json:"device"`
	Message string `json:"message"`
}
