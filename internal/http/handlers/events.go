package handlers

import (
	"context"
	"encoding/json"

	"github.com/hookline/hookline/internal/service"
)

// EventHandler handles event ingestion and retry queue introspection.
type EventHandler struct {
	dispatcher *service.Dispatcher
	scheduler  *service.RetryScheduler
}

// NewEventHandler creates a new event handler.
func NewEventHandler(dispatcher *service.Dispatcher, scheduler *service.RetryScheduler) *EventHandler {
	return &EventHandler{dispatcher: dispatcher, scheduler: scheduler}
}

// ProcessEventInput represents the event ingestion request.
type ProcessEventInput struct {
	Body struct {
		EventType string          `json:"event_type" minLength:"1" maxLength:"128" doc:"Event type to fan out"`
		Payload   json.RawMessage `json:"payload,omitempty" doc:"Event payload, wrapped in the delivery envelope"`
	}
}

// ProcessEventOutput represents the event ingestion response.
type ProcessEventOutput struct {
	Body service.ProcessResult
}

// ProcessEvent fans an event out to every subscribed webhook.
func (h *EventHandler) ProcessEvent(ctx context.Context, input *ProcessEventInput) (*ProcessEventOutput, error) {
	var payload any
	if len(input.Body.Payload) > 0 {
		if err := json.Unmarshal(input.Body.Payload, &payload); err != nil {
			payload = string(input.Body.Payload)
		}
	}

	result, err := h.dispatcher.ProcessEvent(ctx, input.Body.EventType, payload)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &ProcessEventOutput{Body: *result}, nil
}

// RetryStatsOutput represents the retry queue stats response.
type RetryStatsOutput struct {
	Body struct {
		Pending int `json:"pending" doc:"Retries waiting in the durable queue"`
	}
}

// RetryStats reports the current depth of the retry queue.
func (h *EventHandler) RetryStats(ctx context.Context, input *struct{}) (*RetryStatsOutput, error) {
	pending, err := h.scheduler.PendingCount(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &RetryStatsOutput{}
	out.Body.Pending = pending
	return out, nil
}
