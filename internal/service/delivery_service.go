package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hookline/hookline/internal/crypto"
	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/signature"
)

// maxResponseBodyBytes caps how much of the receiver's response body is
// retained on the delivery record.
const maxResponseBodyBytes = 4096

// Outcome describes a single delivery attempt. StatusCode is zero when no
// HTTP response was received (connection failure or timeout).
type Outcome struct {
	WebhookID    string
	Success      bool
	StatusCode   int
	Error        string
	ResponseBody string
	Duration     time.Duration
	Attempt      int
}

// DeliveryService posts signed event envelopes to webhook endpoints and
// appends an audit record for every attempt, successful or not.
type DeliveryService struct {
	deliveryRepo repository.DeliveryRepository
	encryptor    *crypto.Encryptor
	client       *http.Client
	userAgent    string
	logger       *slog.Logger
}

func NewDeliveryService(deliveryRepo repository.DeliveryRepository, encryptor *crypto.Encryptor, timeout time.Duration, userAgent string, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		deliveryRepo: deliveryRepo,
		encryptor:    encryptor,
		client:       &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		logger:       logger,
	}
}

// BuildEnvelope serializes the outbound payload wrapper for a webhook.
func (s *DeliveryService) BuildEnvelope(webhookID, eventType string, data any) ([]byte, error) {
	envelope := models.Envelope{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
		WebhookID: webhookID,
	}
	return json.Marshal(envelope)
}

// Deliver signs the envelope with the webhook's secret, posts it to the
// target URL, and records the attempt in the delivery ledger. A 2xx
// response counts as success; everything else, including transport
// failures, is a failed attempt.
func (s *DeliveryService) Deliver(ctx context.Context, webhook *models.Webhook, eventType string, envelope []byte, attempt int) *Outcome {
	outcome := &Outcome{WebhookID: webhook.ID, Attempt: attempt}

	secret, err := s.encryptor.Decrypt(webhook.SecretEncrypted)
	if err != nil {
		outcome.Error = "failed to decrypt webhook secret"
		s.record(ctx, webhook, eventType, outcome)
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.TargetURL, bytes.NewReader(envelope))
	if err != nil {
		outcome.Error = "failed to build request: " + err.Error()
		s.record(ctx, webhook, eventType, outcome)
		return outcome
	}

	sig := signature.Sign(envelope, secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-ID", webhook.ID)
	req.Header.Set(signature.HeaderName, signature.HeaderValue(sig))

	start := time.Now()
	resp, err := s.client.Do(req)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Error = "request failed: " + err.Error()
		s.record(ctx, webhook, eventType, outcome)
		s.logger.Warn("webhook delivery failed",
			"webhook_id", webhook.ID,
			"event_type", eventType,
			"attempt", attempt,
			"error", err)
		return outcome
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	outcome.StatusCode = resp.StatusCode
	outcome.ResponseBody = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Success = true
		s.logger.Info("webhook delivered",
			"webhook_id", webhook.ID,
			"event_type", eventType,
			"status", resp.StatusCode,
			"attempt", attempt,
			"duration_ms", outcome.Duration.Milliseconds())
	} else {
		outcome.Error = (&DeliveryError{WebhookID: webhook.ID, StatusCode: resp.StatusCode, Reason: "non-2xx response"}).Error()
		s.logger.Warn("webhook delivery rejected",
			"webhook_id", webhook.ID,
			"event_type", eventType,
			"status", resp.StatusCode,
			"attempt", attempt)
	}

	s.record(ctx, webhook, eventType, outcome)
	return outcome
}

// record appends the attempt to the ledger. Ledger failures are logged
// but never fail the delivery itself.
func (s *DeliveryService) record(ctx context.Context, webhook *models.Webhook, eventType string, outcome *Outcome) {
	delivery := &models.Delivery{
		WebhookID:      webhook.ID,
		EventType:      eventType,
		Success:        outcome.Success,
		StatusCode:     outcome.StatusCode,
		Error:          outcome.Error,
		AttemptNumber:  outcome.Attempt,
		ResponseBody:   outcome.ResponseBody,
		ResponseTimeMs: int(outcome.Duration.Milliseconds()),
	}
	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		s.logger.Error("failed to record delivery attempt",
			"webhook_id", webhook.ID,
			"event_type", eventType,
			"error", err)
	}
}

// RecordTerminal appends a ledger entry that is not tied to an HTTP
// attempt, such as the retry ceiling marker.
func (s *DeliveryService) RecordTerminal(ctx context.Context, webhookID, eventType, reason string, attempt int) {
	delivery := &models.Delivery{
		WebhookID:     webhookID,
		EventType:     eventType,
		Success:       false,
		Error:         reason,
		AttemptNumber: attempt,
	}
	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		s.logger.Error("failed to record terminal delivery entry",
			"webhook_id", webhookID,
			"event_type", eventType,
			"error", err)
	}
}
