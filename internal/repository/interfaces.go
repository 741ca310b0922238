// Package repository provides data access interfaces and SQLite/libsql
// implementations.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hookline/hookline/internal/models"
)

// WebhookFilter narrows List results. Zero values match everything.
type WebhookFilter struct {
	OwnerID    string
	EventType  string
	ActiveOnly bool
}

// WebhookRepository defines methods for webhook subscription data access.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	List(ctx context.Context, filter WebhookFilter) ([]*models.Webhook, error)
	GetActiveByEventType(ctx context.Context, eventType string) ([]*models.Webhook, error)
	// Deactivate soft-deletes a webhook. Idempotent: deactivating an
	// already-inactive webhook is a no-op success.
	Deactivate(ctx context.Context, id string) error
	IncrementRetryCount(ctx context.Context, id string) error
}

// DeliveryRepository is the append-only delivery ledger. Records are
// never updated or deleted except by retention cleanup.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.Delivery) error
	GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.Delivery, error)
	GetOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// RetryRepository is the durable delayed queue of pending redeliveries.
type RetryRepository interface {
	Create(ctx context.Context, item *models.RetryItem) error
	Update(ctx context.Context, item *models.RetryItem) error
	Delete(ctx context.Context, id string) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryItem, error)
	Count(ctx context.Context) (int, error)
}

// Repositories bundles all repository implementations.
type Repositories struct {
	Webhook  WebhookRepository
	Delivery DeliveryRepository
	Retry    RetryRepository
}

// NewRepositories creates SQLite-backed repositories.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Webhook:  NewSQLiteWebhookRepository(db),
		Delivery: NewSQLiteDeliveryRepository(db),
		Retry:    NewSQLiteRetryRepository(db),
	}
}
