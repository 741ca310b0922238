package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hookline/hookline/internal/crypto"
	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/service"
)

type memWebhookRepo struct {
	mu       sync.RWMutex
	webhooks map[string]*models.Webhook
	nextID   int
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{webhooks: make(map[string]*models.Webhook)}
}

func (m *memWebhookRepo) Create(ctx context.Context, webhook *models.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	webhook.ID = fmt.Sprintf("wh-%04d", m.nextID)
	webhook.CreatedAt = time.Now().UTC()
	webhook.UpdatedAt = webhook.CreatedAt
	m.webhooks[webhook.ID] = webhook
	return nil
}

func (m *memWebhookRepo) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.webhooks[id], nil
}

func (m *memWebhookRepo) List(ctx context.Context, filter repository.WebhookFilter) ([]*models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Webhook
	for _, w := range m.webhooks {
		if filter.OwnerID != "" && w.OwnerID != filter.OwnerID {
			continue
		}
		if filter.EventType != "" && w.EventType != filter.EventType {
			continue
		}
		if filter.ActiveOnly && !w.IsActive {
			continue
		}
		result = append(result, w)
	}
	return result, nil
}

func (m *memWebhookRepo) GetActiveByEventType(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Webhook
	for _, w := range m.webhooks {
		if w.EventType == eventType && w.IsActive {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *memWebhookRepo) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.webhooks[id]; ok {
		w.IsActive = false
	}
	return nil
}

func (m *memWebhookRepo) IncrementRetryCount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.webhooks[id]; ok {
		w.RetryCount++
	}
	return nil
}

type memDeliveryRepo struct {
	mu         sync.RWMutex
	deliveries []*models.Delivery
	nextID     int
}

func (m *memDeliveryRepo) Create(ctx context.Context, delivery *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	delivery.ID = fmt.Sprintf("del-%04d", m.nextID)
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}
	m.deliveries = append(m.deliveries, delivery)
	return nil
}

func (m *memDeliveryRepo) GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Delivery
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if m.deliveries[i].WebhookID == webhookID {
			result = append(result, m.deliveries[i])
		}
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memDeliveryRepo) GetOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error) {
	return nil, nil
}

func (m *memDeliveryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type memRetryRepo struct {
	mu     sync.RWMutex
	items  map[string]*models.RetryItem
	nextID int
}

func newMemRetryRepo() *memRetryRepo {
	return &memRetryRepo{items: make(map[string]*models.RetryItem)}
}

func (m *memRetryRepo) Create(ctx context.Context, item *models.RetryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = fmt.Sprintf("retry-%04d", m.nextID)
	m.items[item.ID] = item
	return nil
}

func (m *memRetryRepo) Update(ctx context.Context, item *models.RetryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *memRetryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memRetryRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.RetryItem
	for _, item := range m.items {
		if !item.NextRetryAt.After(now) {
			result = append(result, item)
		}
	}
	return result, nil
}

func (m *memRetryRepo) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServices wires the full service stack over in-memory repos.
func newTestServices(t *testing.T) *service.Services {
	t.Helper()
	logger := testLogger()
	enc, err := crypto.NewEncryptor(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	webhookRepo := newMemWebhookRepo()
	deliveryRepo := &memDeliveryRepo{}
	retryRepo := newMemRetryRepo()

	router := service.NewRouter(webhookRepo, logger)
	registry := service.NewRegistryService(webhookRepo, deliveryRepo, enc, router, logger)
	deliverer := service.NewDeliveryService(deliveryRepo, enc, 5*time.Second, "Hookline-Webhook/1.0", logger)
	scheduler := service.NewRetryScheduler(retryRepo, webhookRepo, deliverer, 3, 5*time.Second, logger)
	handlers := service.NewHandlerRegistry(logger)
	dispatcher := service.NewDispatcher(router, deliverer, scheduler, handlers, 4, logger)

	return &service.Services{
		Registry:   registry,
		Router:     router,
		Delivery:   deliverer,
		Scheduler:  scheduler,
		Handlers:   handlers,
		Dispatcher: dispatcher,
	}
}
