package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/session"
)

// recorderBacklog bounds the pending-write queue. A full queue drops the
// record rather than stalling the publisher.
const recorderBacklog = 256

const writeTimeout = 5 * time.Second

// Writer persists history records. *Store satisfies it.
type Writer interface {
	InsertSample(ctx context.Context, sample *Sample) error
	InsertTransition(ctx context.Context, tr *Transition) error
}

var _ Writer = (*Store)(nil)

// Recorder writes status and transition events from the bus into a Writer.
// Bus handlers only enqueue; the SQLite round-trips happen on the
// recorder's own goroutine so a slow disk can never hold up a poll tick.
type Recorder struct {
	writer Writer
	logger *zap.Logger

	jobs chan func(context.Context)
	done chan struct{}

	closeOnce   sync.Once
	unsubscribe []func()
}

// NewRecorder creates a recorder writing to w. Call Bind to start
// consuming events and Close to stop.
func NewRecorder(w Writer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		writer: w,
		logger: logger,
		jobs:   make(chan func(context.Context), recorderBacklog),
		done:   make(chan struct{}),
	}
}

// Bind subscribes the recorder to status and transition events on the bus
// and starts its write goroutine. Bind is called at most once.
func (r *Recorder) Bind(bus *event.Bus) {
	go r.run()
	r.unsubscribe = append(r.unsubscribe,
		bus.Subscribe(event.TopicStatusUpdated, r.onStatus),
		bus.Subscribe(event.TopicPowerTransition, r.onTransition),
	)
}

// Close detaches the recorder from the bus, flushes queued writes, and
// waits for the write goroutine to exit. The store is not closed.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		for _, unsub := range r.unsubscribe {
			unsub()
		}
		r.unsubscribe = nil
		close(r.jobs)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		job(ctx)
		cancel()
	}
}

// enqueue hands a write to the worker without ever blocking the caller.
func (r *Recorder) enqueue(topic string, job func(context.Context)) {
	select {
	case r.jobs <- job:
	default:
		r.logger.Warn("history backlog full, dropping record",
			zap.String("topic", topic))
	}
}

func (r *Recorder) onStatus(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.StatusEvent)
	if !ok {
		r.logger.Warn("unexpected status payload", zap.String("topic", e.Topic))
		return
	}

	sample := &Sample{
		ID:             e.ID,
		Device:         payload.Device,
		Power:          payload.Status.Power,
		Charge:         payload.Status.Charge,
		Flags:          payload.Status.Flags,
		BatteryCharge:  payload.Status.BatteryCharge,
		Load:           payload.Status.Load,
		RuntimeSeconds: payload.Status.RuntimeSeconds,
		SampledAt:      e.Timestamp,
	}
	r.enqueue(e.Topic, func(ctx context.Context) {
		if err := r.writer.InsertSample(ctx, sample); err != nil {
			r.logger.Error("record sample",
				zap.String("device", sample.Device),
				zap.Error(err))
		}
	})
}

func (r *Recorder) onTransition(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.PowerTransitionEvent)
	if !ok {
		r.logger.Warn("unexpected transition payload", zap.String("topic", e.Topic))
		return
	}

	tr := &Transition{
		ID:         e.ID,
		Device:     payload.Device,
		From:       payload.From,
		To:         payload.To,
		OccurredAt: e.Timestamp,
	}
	r.enqueue(e.Topic, func(ctx context.Context) {
		if err := r.writer.InsertTransition(ctx, tr); err != nil {
			r.logger.Error("record transition",
				zap.String("device", tr.Device),
				zap.Error(err))
		}
	})
}
