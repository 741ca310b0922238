package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
)

// Router resolves which active webhooks subscribe to an event type. Results
// are cached per event type until a registration change invalidates them.
type Router struct {
	webhookRepo repository.WebhookRepository
	logger      *slog.Logger

	mu    sync.RWMutex
	cache map[string][]*models.Webhook
}

func NewRouter(webhookRepo repository.WebhookRepository, logger *slog.Logger) *Router {
	return &Router{
		webhookRepo: webhookRepo,
		logger:      logger,
		cache:       make(map[string][]*models.Webhook),
	}
}

// Match returns the active webhooks subscribed to eventType. The cached
// slice is shared between callers and must not be mutated.
func (r *Router) Match(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	r.mu.RLock()
	cached, ok := r.cache[eventType]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	webhooks, err := r.webhookRepo.GetActiveByEventType(ctx, eventType)
	if err != nil {
		return nil, &PersistenceError{Op: "query webhooks for event type", Err: err}
	}

	r.mu.Lock()
	r.cache[eventType] = webhooks
	r.mu.Unlock()

	r.logger.Debug("routing cache populated", "event_type", eventType, "webhooks", len(webhooks))
	return webhooks, nil
}

// Invalidate drops the cached entry for eventType so the next Match
// re-reads from the database.
func (r *Router) Invalidate(eventType string) {
	r.mu.Lock()
	delete(r.cache, eventType)
	r.mu.Unlock()
}

// InvalidateAll clears the whole cache.
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string][]*models.Webhook)
	r.mu.Unlock()
}
