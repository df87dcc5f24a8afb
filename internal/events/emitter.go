package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events to registered handlers in process.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With(slog.String("component", "event_emitter")),
	}
}

// RegisterHandler adds a handler; handlers run in registration order.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", slog.Int("handler_count", len(e.handlers)))
}

// EmitEvent calls every handler and returns the first handler error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *RequestEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	e.logger.Debug("emitting event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.Int("handler_count", len(handlers)))

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				slog.String("error", err.Error()),
				slog.Int("handler_index", i),
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Type))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
