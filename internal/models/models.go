// Package models defines the domain models for hookline.
// Webhooks are owner-scoped subscriptions to internal business events;
// deliveries form an append-only audit ledger of outbound attempts.
package models

import (
	"time"
)

// Webhook represents a registered external HTTP endpoint that receives
// event notifications. The secret is generated once at registration and
// never rotated; it is stored encrypted and is never returned in full.
type Webhook struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	IntegrationType string    `json:"integration_type"` // e.g. "salesforce", "slack"
	EventType       string    `json:"event_type"`       // exact-match routing key
	TargetURL       string    `json:"target_url"`
	SecretEncrypted string    `json:"-"` // AES-256-GCM encrypted HMAC secret
	IsActive        bool      `json:"is_active"`
	RetryCount      int       `json:"retry_count"` // historical retries scheduled, informational
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Delivery represents a single outbound delivery attempt. Rows are
// append-only; a failed attempt is never updated in place, a retry
// produces a new row with the next attempt number.
type Delivery struct {
	ID             string    `json:"id"`
	WebhookID      string    `json:"webhook_id"`
	EventType      string    `json:"event_type"`
	Success        bool      `json:"success"`
	StatusCode     int       `json:"status_code"` // 0 if no response was received
	Error          string    `json:"error,omitempty"`
	AttemptNumber  int       `json:"attempt_number"`
	ResponseBody   string    `json:"response_body,omitempty"`
	ResponseTimeMs int       `json:"response_time_ms"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

// RetryItem is a pending redelivery in the durable delayed queue.
// RetryCount is the number of the attempt that already failed; the next
// attempt is RetryCount+1. Rows are removed on success or when the retry
// ceiling is reached.
type RetryItem struct {
	ID          string    `json:"id"`
	WebhookID   string    `json:"webhook_id"`
	EventType   string    `json:"event_type"`
	PayloadJSON string    `json:"payload_json"` // serialized envelope, re-signed per attempt
	RetryCount  int       `json:"retry_count"`
	NextRetryAt time.Time `json:"next_retry_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Envelope is the wire format wrapping an event payload for transmission.
type Envelope struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"` // ISO-8601 / RFC3339
	Data      any    `json:"data"`
	WebhookID string `json:"webhook_id"`
}

// RetryCeilingExceeded is the distinguishing error text recorded on the
// terminal ledger entry when a delivery exhausts its final attempt.
const RetryCeilingExceeded = "retry ceiling exceeded"
