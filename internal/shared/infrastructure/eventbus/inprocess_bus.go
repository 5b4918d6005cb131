package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes a published event.
type Handler func(ctx context.Context, routingKey string, payload []byte)

// InProcessBus is an in-memory event bus for local mode (no RabbitMQ).
// Events are delivered synchronously to registered handlers.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewInProcessBus creates a new in-process event bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a routing key. An empty routing key
// subscribes to all events.
func (b *InProcessBus) Subscribe(routingKey string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

// Publish delivers the event synchronously to matching handlers.
// Handler panics are not recovered; handlers are expected to be cheap.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.handlers[routingKey])+len(b.handlers[""]))
	matched = append(matched, b.handlers[routingKey]...)
	matched = append(matched, b.handlers[""]...)
	b.mu.RUnlock()

	start := time.Now()
	for _, h := range matched {
		h(ctx, routingKey, payload)
	}

	b.logger.Debug("event dispatched",
		"routing_key", routingKey,
		"handlers", len(matched),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close is a no-op for the in-process bus.
func (b *InProcessBus) Close() error {
	return nil
}
