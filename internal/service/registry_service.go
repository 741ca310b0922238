package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hookline/hookline/internal/crypto"
	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
)

// RegisterInput carries the fields needed to register a webhook. Secret is
// optional; when empty a random secret is generated.
type RegisterInput struct {
	OwnerID         string
	IntegrationType string
	EventType       string
	TargetURL       string
	Secret          string
}

// RegistryService manages the webhook lifecycle: registration with secret
// generation and encryption, soft-delete on unregister, and routing cache
// invalidation on every mutation.
type RegistryService struct {
	webhookRepo  repository.WebhookRepository
	deliveryRepo repository.DeliveryRepository
	encryptor    *crypto.Encryptor
	router       *Router
	logger       *slog.Logger
}

func NewRegistryService(webhookRepo repository.WebhookRepository, deliveryRepo repository.DeliveryRepository, encryptor *crypto.Encryptor, router *Router, logger *slog.Logger) *RegistryService {
	return &RegistryService{
		webhookRepo:  webhookRepo,
		deliveryRepo: deliveryRepo,
		encryptor:    encryptor,
		router:       router,
		logger:       logger,
	}
}

// Register validates the input, stores the webhook with an encrypted
// secret, and returns it along with the plaintext secret so the caller
// can show it once. The secret is never readable again through the
// registry.
func (s *RegistryService) Register(ctx context.Context, in RegisterInput) (*models.Webhook, string, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, "", err
	}

	secret := in.Secret
	if secret == "" {
		generated, err := crypto.GenerateSecret()
		if err != nil {
			return nil, "", &PersistenceError{Op: "generate webhook secret", Err: err}
		}
		secret = generated
	}

	encrypted, err := s.encryptor.Encrypt(secret)
	if err != nil {
		return nil, "", &PersistenceError{Op: "encrypt webhook secret", Err: err}
	}

	webhook := &models.Webhook{
		OwnerID:         in.OwnerID,
		IntegrationType: in.IntegrationType,
		EventType:       in.EventType,
		TargetURL:       in.TargetURL,
		SecretEncrypted: encrypted,
		IsActive:        true,
	}

	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, "", &PersistenceError{Op: "create webhook", Err: err}
	}

	s.router.Invalidate(in.EventType)
	s.logger.Info("webhook registered",
		"webhook_id", webhook.ID,
		"owner_id", webhook.OwnerID,
		"event_type", webhook.EventType)

	return webhook, secret, nil
}

// Unregister soft-deletes a webhook. Unknown IDs are a no-op so the
// operation is idempotent.
func (s *RegistryService) Unregister(ctx context.Context, id string) error {
	webhook, err := s.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "get webhook", Err: err}
	}
	if webhook == nil {
		return nil
	}

	if err := s.webhookRepo.Deactivate(ctx, id); err != nil {
		return &PersistenceError{Op: "deactivate webhook", Err: err}
	}

	s.router.Invalidate(webhook.EventType)
	s.logger.Info("webhook unregistered", "webhook_id", id, "event_type", webhook.EventType)
	return nil
}

// Get returns a webhook by ID, or nil when it does not exist.
func (s *RegistryService) Get(ctx context.Context, id string) (*models.Webhook, error) {
	webhook, err := s.webhookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get webhook", Err: err}
	}
	return webhook, nil
}

// List returns webhooks matching the filter.
func (s *RegistryService) List(ctx context.Context, filter repository.WebhookFilter) ([]*models.Webhook, error) {
	webhooks, err := s.webhookRepo.List(ctx, filter)
	if err != nil {
		return nil, &PersistenceError{Op: "list webhooks", Err: err}
	}
	return webhooks, nil
}

// Deliveries returns the delivery history for a webhook, newest first.
func (s *RegistryService) Deliveries(ctx context.Context, webhookID string, limit, offset int) ([]*models.Delivery, error) {
	deliveries, err := s.deliveryRepo.GetByWebhookID(ctx, webhookID, limit, offset)
	if err != nil {
		return nil, &PersistenceError{Op: "list deliveries", Err: err}
	}
	return deliveries, nil
}

func validateRegisterInput(in RegisterInput) error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.EventType) == "" {
		return &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.TargetURL) == "" {
		return &ValidationError{Field: "target_url", Reason: "must not be empty"}
	}

	parsed, err := url.Parse(in.TargetURL)
	if err != nil {
		return &ValidationError{Field: "target_url", Reason: "must be a valid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "target_url", Reason: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "target_url", Reason: "must include a host"}
	}

	return nil
}
