package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
)

// ========================================
// Mock Repositories
// ========================================

type mockWebhookRepository struct {
	mu       sync.RWMutex
	webhooks map[string]*models.Webhook
	nextID   int
	queries  int
	failWith error
}

func newMockWebhookRepository() *mockWebhookRepository {
	return &mockWebhookRepository{
		webhooks: make(map[string]*models.Webhook),
	}
}

func (m *mockWebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if webhook.ID == "" {
		m.nextID++
		webhook.ID = fmt.Sprintf("wh-%04d", m.nextID)
	}
	webhook.CreatedAt = time.Now().UTC()
	webhook.UpdatedAt = webhook.CreatedAt
	m.webhooks[webhook.ID] = webhook
	return nil
}

func (m *mockWebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.webhooks[id], nil
}

func (m *mockWebhookRepository) List(ctx context.Context, filter repository.WebhookFilter) ([]*models.Webhook, error) {
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

func (m *mockWebhookRepository) GetActiveByEventType(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var result []*models.Webhook
	for _, w := range m.webhooks {
		if w.EventType == eventType && w.IsActive {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *mockWebhookRepository) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.webhooks[id]; ok {
		w.IsActive = false
		w.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *mockWebhookRepository) IncrementRetryCount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.webhooks[id]; ok {
		w.RetryCount++
	}
	return nil
}

func (m *mockWebhookRepository) queryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

type mockDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries []*models.Delivery
	nextID     int
	failWith   error
}

func newMockDeliveryRepository() *mockDeliveryRepository {
	return &mockDeliveryRepository{}
}

func (m *mockDeliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	delivery.ID = fmt.Sprintf("del-%04d", m.nextID)
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}
	m.deliveries = append(m.deliveries, delivery)
	return nil
}

func (m *mockDeliveryRepository) GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.Delivery, error) {
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

func (m *mockDeliveryRepository) GetOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Delivery
	for _, d := range m.deliveries {
		if d.DeliveredAt.Before(cutoff) {
			result = append(result, d)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *mockDeliveryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.deliveries[:0]
	deleted := 0
	for _, d := range m.deliveries {
		if d.DeliveredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	m.deliveries = kept
	return deleted, nil
}

func (m *mockDeliveryRepository) all() []*models.Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*models.Delivery, len(m.deliveries))
	copy(result, m.deliveries)
	return result
}

func (m *mockDeliveryRepository) forWebhook(webhookID string) []*models.Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Delivery
	for _, d := range m.deliveries {
		if d.WebhookID == webhookID {
			result = append(result, d)
		}
	}
	return result
}

type mockRetryRepository struct {
	mu       sync.RWMutex
	items    map[string]*models.RetryItem
	nextID   int
	failWith error
}

func newMockRetryRepository() *mockRetryRepository {
	return &mockRetryRepository{
		items: make(map[string]*models.RetryItem),
	}
}

func (m *mockRetryRepository) Create(ctx context.Context, item *models.RetryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	item.ID = fmt.Sprintf("retry-%04d", m.nextID)
	item.CreatedAt = time.Now().UTC()
	m.items[item.ID] = item
	return nil
}

func (m *mockRetryRepository) Update(ctx context.Context, item *models.RetryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return errors.New("retry item not found")
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockRetryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *mockRetryRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.RetryItem
	for _, item := range m.items {
		if !item.NextRetryAt.After(now) {
			result = append(result, item)
		}
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *mockRetryRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *mockRetryRepository) first() *models.RetryItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		return item
	}
	return nil
}
