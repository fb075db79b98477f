// Package events provides the in-process publish/subscribe bus that sequences
// the booking saga. Dispatch is saga-sequential: Publish runs every handler
// for an event to completion, in registration order, before returning to the
// publisher. That total ordering is what makes the saga a deterministic chain
// rather than a fan-out.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is a single message on the bus. CorrelationID identifies one saga
// invocation and is threaded through every event and log line belonging to
// it; RequestID identifies the business request.
type Event struct {
	ID            string    `json:"event_id"`
	Type          string    `json:"event_type"`
	RequestID     string    `json:"request_id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload,omitempty"`
}

// Handler processes one event. A returned error stops dispatch of the
// remaining handlers for that event and propagates to the publisher; the bus
// never translates handler errors into compensation itself.
type Handler func(ctx context.Context, e Event) error

// Bus is an explicit bus instance owned by its orchestrator. Handlers are
// registered at construction time, which keeps multiple independent
// orchestrators possible (and testable) without process-wide state.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	history  []Event
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for an event type. Handlers sharing a type
// run in registration order.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
	b.logger.Debug("handler subscribed", "event_type", eventType)
}

// Publish appends the event to the audit history and invokes each registered
// handler sequentially, awaiting each to completion before the next and
// before returning. Handlers may publish follow-up events; those nested
// publishes complete before the outer one returns, so a saga advances as one
// uninterrupted chain within its goroutine.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	b.history = append(b.history, e)
	handlers := make([]Handler, len(b.handlers[e.Type]))
	copy(handlers, b.handlers[e.Type])
	b.mu.Unlock()

	b.logger.Info("event published",
		"event_type", e.Type,
		"request_id", e.RequestID,
		"correlation_id", e.CorrelationID,
		"handler_count", len(handlers),
	)

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.logger.Error("event handler failed",
				"event_type", e.Type,
				"request_id", e.RequestID,
				"correlation_id", e.CorrelationID,
				"error", err,
			)
			return fmt.Errorf("handle %s: %w", e.Type, err)
		}
	}
	return nil
}

// History returns all events published for a request, in publish order.
func (b *Bus) History(requestID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out
}

// ClearHistory resets the audit log. Test and reset support only.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}
