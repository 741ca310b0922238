package service

import (
	"errors"
	"fmt"
)

// ErrSignatureMismatch is returned when an inbound payload fails HMAC
// verification, or when no secret is registered for the event type.
var ErrSignatureMismatch = errors.New("signature verification failed")

// ValidationError indicates a rejected registration or event input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DeliveryError describes a failed delivery attempt. StatusCode is zero
// when no HTTP response was received.
type DeliveryError struct {
	WebhookID  string
	StatusCode int
	Reason     string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("delivery to webhook %s failed with status %d: %s", e.WebhookID, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("delivery to webhook %s failed: %s", e.WebhookID, e.Reason)
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
