package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hookline/hookline/internal/models"
)

// SQLiteDeliveryRepository implements DeliveryRepository for SQLite/libsql.
type SQLiteDeliveryRepository struct {
	db *sql.DB
}

// NewSQLiteDeliveryRepository creates a new SQLite delivery repository.
func NewSQLiteDeliveryRepository(db *sql.DB) *SQLiteDeliveryRepository {
	return &SQLiteDeliveryRepository{db: db}
}

const deliveryColumns = `id, webhook_id, event_type, success, status_code, error_message, attempt_number, response_body, response_time_ms, delivered_at`

// Create appends a delivery record to the ledger.
func (r *SQLiteDeliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = ulid.Make().String()
	}
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}

	var errMsg *string
	if delivery.Error != "" {
		errMsg = &delivery.Error
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (`+deliveryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, delivery.ID, delivery.WebhookID, delivery.EventType, delivery.Success,
		delivery.StatusCode, errMsg, delivery.AttemptNumber, delivery.ResponseBody,
		delivery.ResponseTimeMs, delivery.DeliveredAt.Format(time.RFC3339))

	return err
}

// GetByWebhookID retrieves delivery records for a webhook, newest first.
func (r *SQLiteDeliveryRepository) GetByWebhookID(ctx context.Context, webhookID string, limit, offset int) ([]*models.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE webhook_id = ?
		ORDER BY delivered_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, webhookID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return r.scanDeliveries(rows)
}

// GetOlderThan retrieves records older than cutoff, oldest first.
// Used by retention cleanup to archive before pruning.
func (r *SQLiteDeliveryRepository) GetOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE delivered_at < ?
		ORDER BY delivered_at
		LIMIT ?
	`, cutoff.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return r.scanDeliveries(rows)
}

// DeleteOlderThan prunes records older than cutoff and reports how many
// were removed.
func (r *SQLiteDeliveryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM webhook_deliveries WHERE delivered_at < ?
	`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *SQLiteDeliveryRepository) scanDeliveries(rows *sql.Rows) ([]*models.Delivery, error) {
	var deliveries []*models.Delivery

	for rows.Next() {
		var delivery models.Delivery
		var errMsg sql.NullString
		var responseBody sql.NullString
		var deliveredAt string

		err := rows.Scan(
			&delivery.ID,
			&delivery.WebhookID,
			&delivery.EventType,
			&delivery.Success,
			&delivery.StatusCode,
			&errMsg,
			&delivery.AttemptNumber,
			&responseBody,
			&delivery.ResponseTimeMs,
			&deliveredAt,
		)
		if err != nil {
			return nil, err
		}

		delivery.Error = errMsg.String
		delivery.ResponseBody = responseBody.String
		delivery.DeliveredAt, _ = time.Parse(time.RFC3339, deliveredAt)

		deliveries = append(deliveries, &delivery)
	}

	return deliveries, rows.Err()
}
