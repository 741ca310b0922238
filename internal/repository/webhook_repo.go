package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hookline/hookline/internal/models"
)

// SQLiteWebhookRepository implements WebhookRepository for SQLite/libsql.
type SQLiteWebhookRepository struct {
	db *sql.DB
}

// NewSQLiteWebhookRepository creates a new SQLite webhook repository.
func NewSQLiteWebhookRepository(db *sql.DB) *SQLiteWebhookRepository {
	return &SQLiteWebhookRepository{db: db}
}

const webhookColumns = `id, owner_id, integration_type, event_type, target_url, secret_encrypted, is_active, retry_count, created_at, updated_at`

// Create persists a new webhook subscription.
func (r *SQLiteWebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	now := time.Now().UTC()

	if webhook.ID == "" {
		webhook.ID = ulid.Make().String()
	}
	webhook.CreatedAt = now
	webhook.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhooks (`+webhookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.OwnerID, webhook.IntegrationType, webhook.EventType,
		webhook.TargetURL, webhook.SecretEncrypted, webhook.IsActive, webhook.RetryCount,
		now.Format(time.RFC3339), now.Format(time.RFC3339))

	return err
}

// GetByID retrieves a webhook by ID. Returns (nil, nil) if not found.
func (r *SQLiteWebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+webhookColumns+` FROM webhooks WHERE id = ?
	`, id)

	return r.scanWebhook(row)
}

// List retrieves webhooks matching the filter, newest first.
func (r *SQLiteWebhookRepository) List(ctx context.Context, filter WebhookFilter) ([]*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.EventType)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return r.scanWebhooks(rows)
}

// GetActiveByEventType retrieves the active subscribers for an event type.
func (r *SQLiteWebhookRepository) GetActiveByEventType(ctx context.Context, eventType string) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhooks
		WHERE event_type = ? AND is_active = 1
		ORDER BY created_at
	`, eventType)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return r.scanWebhooks(rows)
}

// Deactivate soft-deletes a webhook; the row stays for audit. Running it
// against an already-inactive or missing webhook is a no-op.
func (r *SQLiteWebhookRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks SET is_active = 0, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// IncrementRetryCount bumps the informational retry counter.
func (r *SQLiteWebhookRepository) IncrementRetryCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteWebhookRepository) scanWebhook(row *sql.Row) (*models.Webhook, error) {
	var webhook models.Webhook
	var createdAt, updatedAt string

	err := row.Scan(
		&webhook.ID,
		&webhook.OwnerID,
		&webhook.IntegrationType,
		&webhook.EventType,
		&webhook.TargetURL,
		&webhook.SecretEncrypted,
		&webhook.IsActive,
		&webhook.RetryCount,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	webhook.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	webhook.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &webhook, nil
}

func (r *SQLiteWebhookRepository) scanWebhooks(rows *sql.Rows) ([]*models.Webhook, error) {
	var webhooks []*models.Webhook

	for rows.Next() {
		var webhook models.Webhook
		var createdAt, updatedAt string

		err := rows.Scan(
			&webhook.ID,
			&webhook.OwnerID,
			&webhook.IntegrationType,
			&webhook.EventType,
			&webhook.TargetURL,
			&webhook.SecretEncrypted,
			&webhook.IsActive,
			&webhook.RetryCount,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, err
		}

		webhook.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		webhook.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		webhooks = append(webhooks, &webhook)
	}

	return webhooks, rows.Err()
}
