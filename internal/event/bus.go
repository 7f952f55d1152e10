package event

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Bus is a thread-safe topic-based event bus. Publish runs handlers
// synchronously on the caller's goroutine; PublishAsync runs them on a new
// goroutine. A panicking handler is recovered and logged so it cannot take
// down the publisher or starve later handlers.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler // topic -> id -> handler
	all      map[int]Handler
}

// NewBus creates an empty Bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
		all:      make(map[int]Handler),
	}
}

// Subscribe registers a handler for one topic and returns its unsubscribe
// function.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]Handler)
	}
	b.handlers[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}
}

// SubscribeAll registers a handler for every topic and returns its
// unsubscribe function.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.all[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Publish delivers e to all matching handlers synchronously.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	for _, h := range b.snapshot(e.Topic) {
		b.invoke(ctx, h, e)
	}
	return nil
}

// PublishAsync delivers e to all matching handlers on a separate goroutine.
func (b *Bus) PublishAsync(ctx context.Context, e Event) {
	handlers := b.snapshot(e.Topic)
	go func() {
		for _, h := range handlers {
			b.invoke(ctx, h, e)
		}
	}()
}

// snapshot copies the handler set so delivery never holds the lock.
func (b *Bus) snapshot(topic string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := make([]Handler, 0, len(b.handlers[topic])+len(b.all))
	for _, h := range b.handlers[topic] {
		handlers = append(handlers, h)
	}
	for _, h := range b.all {
		handlers = append(handlers, h)
	}
	return handlers
}

func (b *Bus) invoke(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", e.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, e)
}
