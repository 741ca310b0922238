package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hookline/hookline/internal/models"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/service"
)

// WebhookHandler handles webhook registration endpoints.
type WebhookHandler struct {
	registry *service.RegistryService
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(registry *service.RegistryService) *WebhookHandler {
	return &WebhookHandler{registry: registry}
}

// WebhookInput represents webhook data in API requests.
type WebhookInput struct {
	OwnerID         string `json:"owner_id" minLength:"1" maxLength:"64" doc:"Identifier of the owning tenant or user"`
	IntegrationType string `json:"integration_type,omitempty" maxLength:"64" doc:"Free-form integration label (e.g. slack, generic)"`
	EventType       string `json:"event_type" minLength:"1" maxLength:"128" doc:"Event type this webhook subscribes to"`
	TargetURL       string `json:"target_url" format:"uri" minLength:"1" doc:"HTTP(S) URL to deliver events to"`
	Secret          string `json:"secret,omitempty" maxLength:"256" doc:"HMAC secret (leave empty to have one generated)"`
}

// WebhookResponse represents a webhook in API responses. The secret is
// never included; HasSecret indicates one is configured.
type WebhookResponse struct {
	ID              string `json:"id" doc:"Unique webhook ID"`
	OwnerID         string `json:"owner_id" doc:"Owning tenant or user"`
	IntegrationType string `json:"integration_type,omitempty" doc:"Integration label"`
	EventType       string `json:"event_type" doc:"Subscribed event type"`
	TargetURL       string `json:"target_url" doc:"Delivery URL"`
	HasSecret       bool   `json:"has_secret" doc:"Whether a signing secret is configured"`
	IsActive        bool   `json:"is_active" doc:"Whether this webhook receives events"`
	RetryCount      int    `json:"retry_count" doc:"Lifetime count of scheduled retries"`
	CreatedAt       string `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt       string `json:"updated_at" doc:"Last update timestamp"`
}

// DeliveryResponse represents one ledger entry in API responses.
type DeliveryResponse struct {
	ID             string `json:"id" doc:"Delivery record ID"`
	WebhookID      string `json:"webhook_id" doc:"Webhook this attempt targeted"`
	EventType      string `json:"event_type" doc:"Event type delivered"`
	Success        bool   `json:"success" doc:"Whether the endpoint accepted the delivery"`
	StatusCode     int    `json:"status_code" doc:"HTTP status received (0 if no response)"`
	ErrorMessage   string `json:"error_message,omitempty" doc:"Failure description"`
	AttemptNumber  int    `json:"attempt_number" doc:"Attempt number, starting at 1"`
	ResponseTimeMs int    `json:"response_time_ms" doc:"Round-trip time in milliseconds"`
	DeliveredAt    string `json:"delivered_at" doc:"When the attempt happened"`
}

// CreateWebhookInput represents the register webhook request.
type CreateWebhookInput struct {
	Body WebhookInput
}

// CreateWebhookOutput represents the register webhook response. Secret is
// returned exactly once, at creation.
type CreateWebhookOutput struct {
	Body struct {
		Webhook WebhookResponse `json:"webhook" doc:"The registered webhook"`
		Secret  string          `json:"secret" doc:"Signing secret, shown only in this response"`
	}
}

// CreateWebhook registers a webhook subscription.
func (h *WebhookHandler) CreateWebhook(ctx context.Context, input *CreateWebhookInput) (*CreateWebhookOutput, error) {
	webhook, secret, err := h.registry.Register(ctx, service.RegisterInput{
		OwnerID:         input.Body.OwnerID,
		IntegrationType: input.Body.IntegrationType,
		EventType:       input.Body.EventType,
		TargetURL:       input.Body.TargetURL,
		Secret:          input.Body.Secret,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &CreateWebhookOutput{}
	out.Body.Webhook = webhookToResponse(webhook)
	out.Body.Secret = secret
	return out, nil
}

// GetWebhookInput represents the get webhook request.
type GetWebhookInput struct {
	ID string `path:"id" doc:"Webhook ID"`
}

// GetWebhookOutput represents the get webhook response.
type GetWebhookOutput struct {
	Body WebhookResponse
}

// GetWebhook returns a specific webhook.
func (h *WebhookHandler) GetWebhook(ctx context.Context, input *GetWebhookInput) (*GetWebhookOutput, error) {
	webhook, err := h.registry.Get(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if webhook == nil {
		return nil, huma.Error404NotFound("webhook not found")
	}
	return &GetWebhookOutput{Body: webhookToResponse(webhook)}, nil
}

// ListWebhooksInput represents the list webhooks request.
type ListWebhooksInput struct {
	OwnerID   string `query:"owner_id" doc:"Filter by owner"`
	EventType string `query:"event_type" doc:"Filter by event type"`
	Active    bool   `query:"active" doc:"Only active webhooks"`
}

// ListWebhooksOutput represents the list webhooks response.
type ListWebhooksOutput struct {
	Body struct {
		Webhooks []WebhookResponse `json:"webhooks" doc:"Matching webhooks"`
	}
}

// ListWebhooks returns webhooks matching the filter.
func (h *WebhookHandler) ListWebhooks(ctx context.Context, input *ListWebhooksInput) (*ListWebhooksOutput, error) {
	webhooks, err := h.registry.List(ctx, repository.WebhookFilter{
		OwnerID:    input.OwnerID,
		EventType:  input.EventType,
		ActiveOnly: input.Active,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	responses := make([]WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		responses = append(responses, webhookToResponse(w))
	}

	out := &ListWebhooksOutput{}
	out.Body.Webhooks = responses
	return out, nil
}

// DeleteWebhookInput represents the unregister request.
type DeleteWebhookInput struct {
	ID string `path:"id" doc:"Webhook ID"`
}

// DeleteWebhookOutput represents the unregister response.
type DeleteWebhookOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Always true; unregistering is idempotent"`
	}
}

// DeleteWebhook deactivates a webhook. Unknown IDs succeed so callers
// can retry safely.
func (h *WebhookHandler) DeleteWebhook(ctx context.Context, input *DeleteWebhookInput) (*DeleteWebhookOutput, error) {
	if err := h.registry.Unregister(ctx, input.ID); err != nil {
		return nil, mapServiceError(err)
	}
	out := &DeleteWebhookOutput{}
	out.Body.Success = true
	return out, nil
}

// ListDeliveriesInput represents the delivery history request.
type ListDeliveriesInput struct {
	ID     string `path:"id" doc:"Webhook ID"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"100" doc:"Maximum number of records to return"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Number of records to skip"`
}

// ListDeliveriesOutput represents the delivery history response.
type ListDeliveriesOutput struct {
	Body struct {
		Deliveries []DeliveryResponse `json:"deliveries" doc:"Delivery attempts, newest first"`
	}
}

// ListDeliveries returns the delivery ledger for a webhook.
func (h *WebhookHandler) ListDeliveries(ctx context.Context, input *ListDeliveriesInput) (*ListDeliveriesOutput, error) {
	webhook, err := h.registry.Get(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if webhook == nil {
		return nil, huma.Error404NotFound("webhook not found")
	}

	deliveries, err := h.registry.Deliveries(ctx, input.ID, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}

	responses := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		responses = append(responses, deliveryToResponse(d))
	}

	out := &ListDeliveriesOutput{}
	out.Body.Deliveries = responses
	return out, nil
}

func webhookToResponse(w *models.Webhook) WebhookResponse {
	return WebhookResponse{
		ID:              w.ID,
		OwnerID:         w.OwnerID,
		IntegrationType: w.IntegrationType,
		EventType:       w.EventType,
		TargetURL:       w.TargetURL,
		HasSecret:       w.SecretEncrypted != "",
		IsActive:        w.IsActive,
		RetryCount:      w.RetryCount,
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       w.UpdatedAt.Format(time.RFC3339),
	}
}

func deliveryToResponse(d *models.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:             d.ID,
		WebhookID:      d.WebhookID,
		EventType:      d.EventType,
		Success:        d.Success,
		StatusCode:     d.StatusCode,
		ErrorMessage:   d.Error,
		AttemptNumber:  d.AttemptNumber,
		ResponseTimeMs: d.ResponseTimeMs,
		DeliveredAt:    d.DeliveredAt.Format(time.RFC3339),
	}
}
