package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// HandlerFunc is an in-process event handler. It receives the raw event
// payload and, for inbound webhooks, the request headers.
type HandlerFunc func(ctx context.Context, payload []byte, headers http.Header) error

type handlerEntry struct {
	secret string
	fn     HandlerFunc
}

// HandlerRegistry maps event types to in-process handlers. Each entry
// carries the shared secret used to verify inbound payloads for that
// event type.
type HandlerRegistry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]handlerEntry
}

func NewHandlerRegistry(logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		logger:  logger,
		entries: make(map[string]handlerEntry),
	}
}

// Register binds a handler and verification secret to an event type,
// replacing any previous binding.
func (r *HandlerRegistry) Register(eventType, secret string, fn HandlerFunc) {
	r.mu.Lock()
	r.entries[eventType] = handlerEntry{secret: secret, fn: fn}
	r.mu.Unlock()
	r.logger.Debug("event handler registered", "event_type", eventType)
}

// Secret returns the verification secret for an event type.
func (r *HandlerRegistry) Secret(eventType string) (string, bool) {
	r.mu.RLock()
	entry, ok := r.entries[eventType]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return entry.secret, true
}

// Has reports whether a handler is registered for the event type.
func (r *HandlerRegistry) Has(eventType string) bool {
	r.mu.RLock()
	_, ok := r.entries[eventType]
	r.mu.RUnlock()
	return ok
}

// Dispatch invokes the handler registered for eventType, if any. Handler
// panics are recovered and logged; they never propagate to the caller.
func (r *HandlerRegistry) Dispatch(ctx context.Context, eventType string, payload []byte, headers http.Header) {
	r.mu.RLock()
	entry, ok := r.entries[eventType]
	r.mu.RUnlock()
	if !ok {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked", "event_type", eventType, "panic", rec)
		}
	}()

	if err := entry.fn(ctx, payload, headers); err != nil {
		r.logger.Error("event handler failed", "event_type", eventType, "error", err)
	}
}
