package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hookline/hookline/internal/service"
)

// mapServiceError converts service-layer errors to HTTP status errors.
func mapServiceError(err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return huma.Error422UnprocessableEntity(verr.Error())
	}
	if errors.Is(err, service.ErrSignatureMismatch) {
		return huma.Error401Unauthorized("signature verification failed")
	}
	var perr *service.PersistenceError
	if errors.As(err, &perr) {
		return huma.Error500InternalServerError("storage error: " + perr.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}
