package event

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a published event
type Handler func(ctx context.Context, e Event)

type registration struct {
	id      uint64
	handler Handler
}

// Bus delivers events to handlers registered per topic
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[Topic][]registration
	nextID   uint64
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger.Named("events"),
		handlers: make(map[Topic][]registration),
	}
}

// Subscribe registers a handler for topic and returns a function that removes it
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], registration{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		regs := b.handlers[topic]
		for i, r := range regs {
			if r.id == id {
				b.handlers[topic] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every handler of the event's topic synchronously, in
// registration order. A panicking handler does not stop the others.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	regs := make([]registration, len(b.handlers[e.Topic()]))
	copy(regs, b.handlers[e.Topic()])
	b.mu.RUnlock()

	b.logger.Debug("publishing event",
		zap.String("topic", string(e.Topic())),
		zap.String("event_id", e.EventID()),
		zap.Int("handlers", len(regs)))

	for _, r := range regs {
		b.dispatch(ctx, r.handler, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", string(e.Topic())),
				zap.String("event_id", e.EventID()),
				zap.String("panic", fmt.Sprint(rec)))
		}
	}()
	h(ctx, e)
}
