package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260801-120000",
		Description: "Add webhooks, webhook_deliveries and webhook_retry_queue tables",
		Up: []string{
			// Webhooks table - registered event subscriptions.
			// is_active=0 is a soft delete: the row stays for audit.
			`CREATE TABLE IF NOT EXISTS webhooks (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				integration_type TEXT NOT NULL,
				event_type TEXT NOT NULL,
				target_url TEXT NOT NULL,
				secret_encrypted TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 1,
				retry_count INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhooks_owner_id ON webhooks(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_webhooks_event_active ON webhooks(event_type, is_active)`,

			// Webhook deliveries - append-only ledger of delivery attempts
			`CREATE TABLE IF NOT EXISTS webhook_deliveries (
				id TEXT PRIMARY KEY,
				webhook_id TEXT NOT NULL,
				event_type TEXT NOT NULL,
				success INTEGER NOT NULL,
				status_code INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				attempt_number INTEGER NOT NULL DEFAULT 1,
				response_body TEXT,
				response_time_ms INTEGER NOT NULL DEFAULT 0,
				delivered_at TEXT NOT NULL,
				FOREIGN KEY (webhook_id) REFERENCES webhooks(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_webhook_id ON webhook_deliveries(webhook_id)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_delivered_at ON webhook_deliveries(delivered_at)`,

			// Durable delayed queue for failed deliveries awaiting retry.
			// Rows are removed on success or when the ceiling is reached,
			// and survive process restarts.
			`CREATE TABLE IF NOT EXISTS webhook_retry_queue (
				id TEXT PRIMARY KEY,
				webhook_id TEXT NOT NULL,
				event_type TEXT NOT NULL,
				payload_json TEXT NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 1,
				next_retry_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				FOREIGN KEY (webhook_id) REFERENCES webhooks(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_webhook_retry_queue_next ON webhook_retry_queue(next_retry_at)`,
		},
	})
}
