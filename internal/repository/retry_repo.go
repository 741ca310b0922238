package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hookline/hookline/internal/models"
)

// SQLiteRetryRepository implements RetryRepository for SQLite/libsql.
// The table acts as a durable delayed queue keyed by next_retry_at, so
// pending retries survive process restarts.
type SQLiteRetryRepository struct {
	db *sql.DB
}

// NewSQLiteRetryRepository creates a new SQLite retry repository.
func NewSQLiteRetryRepository(db *sql.DB) *SQLiteRetryRepository {
	return &SQLiteRetryRepository{db: db}
}

const retryColumns = `id, webhook_id, event_type, payload_json, retry_count, next_retry_at, created_at`

// Create enqueues a pending redelivery.
func (r *SQLiteRetryRepository) Create(ctx context.Context, item *models.RetryItem) error {
	if item.ID == "" {
		item.ID = ulid.Make().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_retry_queue (`+retryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.WebhookID, item.EventType, item.PayloadJSON, item.RetryCount,
		item.NextRetryAt.UTC().Format(time.RFC3339), item.CreatedAt.Format(time.RFC3339))

	return err
}

// Update reschedules an item after a renewed failure.
func (r *SQLiteRetryRepository) Update(ctx context.Context, item *models.RetryItem) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_retry_queue
		SET retry_count = ?, next_retry_at = ?
		WHERE id = ?
	`, item.RetryCount, item.NextRetryAt.UTC().Format(time.RFC3339), item.ID)
	return err
}

// Delete removes an item after success or a ceiling breach.
func (r *SQLiteRetryRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhook_retry_queue WHERE id = ?`, id)
	return err
}

// GetDue retrieves items whose next_retry_at has passed, oldest first.
func (r *SQLiteRetryRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*models.RetryItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+retryColumns+`
		FROM webhook_retry_queue
		WHERE next_retry_at <= ?
		ORDER BY next_retry_at
		LIMIT ?
	`, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*models.RetryItem
	for rows.Next() {
		var item models.RetryItem
		var nextRetryAt, createdAt string

		err := rows.Scan(
			&item.ID,
			&item.WebhookID,
			&item.EventType,
			&item.PayloadJSON,
			&item.RetryCount,
			&nextRetryAt,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}

		item.NextRetryAt, _ = time.Parse(time.RFC3339, nextRetryAt)
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		items = append(items, &item)
	}

	return items, rows.Err()
}

// Count returns the number of pending items, due or not.
func (r *SQLiteRetryRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_retry_queue`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
