package service

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hookline/hookline/internal/crypto"
	"github.com/hookline/hookline/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.NewEncryptor(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

// newTestWebhook builds an active webhook whose encrypted secret decrypts
// to the given plaintext.
func newTestWebhook(t *testing.T, enc *crypto.Encryptor, id, eventType, targetURL, secret string) *models.Webhook {
	t.Helper()
	encrypted, err := enc.Encrypt(secret)
	if err != nil {
		t.Fatalf("failed to encrypt test secret: %v", err)
	}
	now := time.Now().UTC()
	return &models.Webhook{
		ID:              id,
		OwnerID:         "owner-1",
		IntegrationType: "generic",
		EventType:       eventType,
		TargetURL:       targetURL,
		SecretEncrypted: encrypted,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newTestDeliveryService(deliveries *mockDeliveryRepository, enc *crypto.Encryptor) *DeliveryService {
	return NewDeliveryService(deliveries, enc, 5*time.Second, "Hookline-Webhook/1.0", testLogger())
}
