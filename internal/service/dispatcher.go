package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/signature"
)

// WebhookResult is the per-endpoint outcome of a fan-out.
type WebhookResult struct {
	WebhookID string `json:"webhook_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ProcessResult summarizes one event fan-out. Success is true only when
// every subscribed webhook accepted the first delivery attempt.
type ProcessResult struct {
	Success           bool            `json:"success"`
	WebhooksProcessed int             `json:"webhooks_processed"`
	Results           []WebhookResult `json:"results"`
}

// Dispatcher fans events out to subscribed webhooks and in-process
// handlers. Outbound deliveries run concurrently under a semaphore so a
// popular event type cannot exhaust the process.
type Dispatcher struct {
	router    *Router
	deliverer *DeliveryService
	scheduler *RetryScheduler
	handlers  *HandlerRegistry
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

func NewDispatcher(router *Router, deliverer *DeliveryService, scheduler *RetryScheduler, handlers *HandlerRegistry, maxConcurrency int64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		router:    router,
		deliverer: deliverer,
		scheduler: scheduler,
		handlers:  handlers,
		sem:       semaphore.NewWeighted(maxConcurrency),
		logger:    logger,
	}
}

// ProcessEvent delivers an event to every active webhook subscribed to
// its type and invokes the matching in-process handler. First-attempt
// failures are handed to the retry scheduler; the returned result
// reflects first attempts only.
func (d *Dispatcher) ProcessEvent(ctx context.Context, eventType string, payload any) (*ProcessResult, error) {
	if strings.TrimSpace(eventType) == "" {
		return nil, &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}

	webhooks, err := d.router.Match(ctx, eventType)
	if err != nil {
		return nil, err
	}

	var handlerWG sync.WaitGroup
	if d.handlers.Has(eventType) {
		raw, merr := json.Marshal(payload)
		if merr != nil {
			d.logger.Error("failed to serialize event payload for handler", "event_type", eventType, "error", merr)
		} else {
			handlerWG.Add(1)
			go func() {
				defer handlerWG.Done()
				d.handlers.Dispatch(ctx, eventType, raw, nil)
			}()
		}
	}

	result := &ProcessResult{
		Success:           true,
		WebhooksProcessed: len(webhooks),
		Results:           make([]WebhookResult, len(webhooks)),
	}

	var wg sync.WaitGroup
	for i, webhook := range webhooks {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			result.Results[i] = WebhookResult{WebhookID: webhook.ID, Error: "cancelled before delivery"}
			continue
		}

		wg.Add(1)
		go func(i int, wh *models.Webhook) {
			defer wg.Done()
			defer d.sem.Release(1)
			result.Results[i] = d.deliverOnce(ctx, wh, eventType, payload)
		}(i, webhook)
	}
	wg.Wait()
	handlerWG.Wait()

	for _, r := range result.Results {
		if !r.Success {
			result.Success = false
			break
		}
	}

	d.logger.Info("event processed",
		"event_type", eventType,
		"webhooks", result.WebhooksProcessed,
		"success", result.Success)
	return result, nil
}

func (d *Dispatcher) deliverOnce(ctx context.Context, webhook *models.Webhook, eventType string, payload any) WebhookResult {
	envelope, err := d.deliverer.BuildEnvelope(webhook.ID, eventType, payload)
	if err != nil {
		return WebhookResult{WebhookID: webhook.ID, Error: "failed to serialize envelope: " + err.Error()}
	}

	outcome := d.deliverer.Deliver(ctx, webhook, eventType, envelope, 1)
	if outcome.Success {
		return WebhookResult{WebhookID: webhook.ID, Success: true}
	}

	if err := d.scheduler.ScheduleRetry(ctx, webhook, eventType, envelope, 1); err != nil {
		d.logger.Error("failed to schedule retry", "webhook_id", webhook.ID, "error", err)
	}
	return WebhookResult{WebhookID: webhook.ID, Error: outcome.Error}
}

// ProcessInbound verifies and dispatches a webhook received from an
// external system. Verification uses the secret registered with the
// event type's handler and fails closed when none is registered.
func (d *Dispatcher) ProcessInbound(ctx context.Context, eventType string, body []byte, headers http.Header) error {
	if strings.TrimSpace(eventType) == "" {
		return &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}

	secret, ok := d.handlers.Secret(eventType)
	if !ok {
		d.logger.Warn("inbound webhook for unregistered event type", "event_type", eventType)
		return ErrSignatureMismatch
	}

	if !signature.VerifyHeader(body, headers.Get(signature.HeaderName), secret) {
		d.logger.Warn("inbound webhook signature rejected", "event_type", eventType)
		return ErrSignatureMismatch
	}

	d.handlers.Dispatch(ctx, eventType, body, headers)
	d.logger.Info("inbound webhook dispatched", "event_type", eventType)
	return nil
}
