package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
)

// RetryScheduler manages the durable retry queue for failed deliveries.
// Failed attempts below the ceiling are enqueued with exponential backoff;
// once the ceiling is reached a terminal ledger entry is written and the
// queue row dropped. The queue lives in the database, so pending retries
// survive process restarts.
type RetryScheduler struct {
	retryRepo   repository.RetryRepository
	webhookRepo repository.WebhookRepository
	deliverer   *DeliveryService
	maxRetries  int
	baseDelay   time.Duration
	logger      *slog.Logger

	// serializes ProcessDue so overlapping ticker fires don't double-send
	mu sync.Mutex
}

func NewRetryScheduler(retryRepo repository.RetryRepository, webhookRepo repository.WebhookRepository, deliverer *DeliveryService, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryScheduler {
	return &RetryScheduler{
		retryRepo:   retryRepo,
		webhookRepo: webhookRepo,
		deliverer:   deliverer,
		maxRetries:  maxRetries,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

// Backoff returns the delay before the retry that follows failed attempt
// n: base * 2^(n-1).
func (s *RetryScheduler) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return s.baseDelay << (attempt - 1)
}

// ScheduleRetry enqueues a follow-up delivery after failedAttempt. When
// the attempt count has reached the ceiling, no retry is scheduled and a
// terminal ledger entry is written instead.
func (s *RetryScheduler) ScheduleRetry(ctx context.Context, webhook *models.Webhook, eventType string, envelope []byte, failedAttempt int) error {
	if failedAttempt >= s.maxRetries {
		s.deliverer.RecordTerminal(ctx, webhook.ID, eventType, models.RetryCeilingExceeded, failedAttempt)
		s.logger.Warn("retry ceiling reached",
			"webhook_id", webhook.ID,
			"event_type", eventType,
			"attempts", failedAttempt)
		return nil
	}

	item := &models.RetryItem{
		WebhookID:   webhook.ID,
		EventType:   eventType,
		PayloadJSON: string(envelope),
		RetryCount:  failedAttempt,
		NextRetryAt: time.Now().UTC().Add(s.Backoff(failedAttempt)),
	}
	if err := s.retryRepo.Create(ctx, item); err != nil {
		return &PersistenceError{Op: "enqueue retry", Err: err}
	}

	if err := s.webhookRepo.IncrementRetryCount(ctx, webhook.ID); err != nil {
		s.logger.Error("failed to increment webhook retry count", "webhook_id", webhook.ID, "error", err)
	}

	s.logger.Info("retry scheduled",
		"webhook_id", webhook.ID,
		"event_type", eventType,
		"attempt", failedAttempt,
		"next_retry_at", item.NextRetryAt.Format(time.RFC3339))
	return nil
}

// ProcessDue re-delivers every queued item whose retry time has arrived,
// up to limit items. Items are processed sequentially. Returns the number
// of retries that succeeded.
func (s *RetryScheduler) ProcessDue(ctx context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, err := s.retryRepo.GetDue(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, &PersistenceError{Op: "fetch due retries", Err: err}
	}
	if len(due) == 0 {
		return 0, nil
	}

	s.logger.Debug("processing due retries", "count", len(due))

	succeeded := 0
	for _, item := range due {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		if s.processItem(ctx, item) {
			succeeded++
		}
	}
	return succeeded, nil
}

func (s *RetryScheduler) processItem(ctx context.Context, item *models.RetryItem) bool {
	webhook, err := s.webhookRepo.GetByID(ctx, item.WebhookID)
	if err != nil {
		s.logger.Error("failed to load webhook for retry", "webhook_id", item.WebhookID, "error", err)
		return false
	}
	if webhook == nil || !webhook.IsActive {
		// Endpoint went away since the retry was queued.
		s.deliverer.RecordTerminal(ctx, item.WebhookID, item.EventType, "webhook no longer active", item.RetryCount)
		s.dropItem(ctx, item)
		return false
	}

	attempt := item.RetryCount + 1
	outcome := s.deliverer.Deliver(ctx, webhook, item.EventType, []byte(item.PayloadJSON), attempt)

	if outcome.Success {
		s.dropItem(ctx, item)
		return true
	}

	if attempt >= s.maxRetries {
		s.deliverer.RecordTerminal(ctx, webhook.ID, item.EventType, models.RetryCeilingExceeded, attempt)
		s.dropItem(ctx, item)
		s.logger.Warn("retry ceiling reached",
			"webhook_id", webhook.ID,
			"event_type", item.EventType,
			"attempts", attempt)
		return false
	}

	item.RetryCount = attempt
	item.NextRetryAt = time.Now().UTC().Add(s.Backoff(attempt))
	if err := s.retryRepo.Update(ctx, item); err != nil {
		s.logger.Error("failed to reschedule retry", "webhook_id", webhook.ID, "error", err)
	}
	if err := s.webhookRepo.IncrementRetryCount(ctx, webhook.ID); err != nil {
		s.logger.Error("failed to increment webhook retry count", "webhook_id", webhook.ID, "error", err)
	}
	return false
}

func (s *RetryScheduler) dropItem(ctx context.Context, item *models.RetryItem) {
	if err := s.retryRepo.Delete(ctx, item.ID); err != nil {
		s.logger.Error("failed to remove retry queue item", "retry_id", item.ID, "error", err)
	}
}

// PendingCount reports how many retries are queued, due or not.
func (s *RetryScheduler) PendingCount(ctx context.Context) (int, error) {
	count, err := s.retryRepo.Count(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "count pending retries", Err: err}
	}
	return count, nil
}
