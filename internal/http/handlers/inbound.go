package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hookline/hookline/internal/service"
)

// maxInboundBodyBytes caps the size of inbound webhook payloads.
const maxInboundBodyBytes = 1 << 20

// InboundHandler receives webhooks from external systems. It is a raw
// chi handler because verification needs the exact request bytes, not a
// decoded body.
type InboundHandler struct {
	dispatcher *service.Dispatcher
	logger     *slog.Logger
}

// NewInboundHandler creates a new inbound webhook handler.
func NewInboundHandler(dispatcher *service.Dispatcher, logger *slog.Logger) *InboundHandler {
	return &InboundHandler{dispatcher: dispatcher, logger: logger}
}

// HandleInbound verifies the payload signature and dispatches it to the
// handler registered for the event type in the URL.
func (h *InboundHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBodyBytes+1))
	if err != nil {
		h.logger.Error("failed to read inbound webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxInboundBodyBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := h.dispatcher.ProcessInbound(r.Context(), eventType, body, r.Header); err != nil {
		if errors.Is(err, service.ErrSignatureMismatch) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("failed to process inbound webhook", "event_type", eventType, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
