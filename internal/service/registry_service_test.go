package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hookline/hookline/internal/repository"
)

func newTestRegistry(t *testing.T, webhooks *mockWebhookRepository) (*RegistryService, *Router) {
	t.Helper()
	enc := testEncryptor(t)
	router := NewRouter(webhooks, testLogger())
	return NewRegistryService(webhooks, newMockDeliveryRepository(), enc, router, testLogger()), router
}

func TestRegisterGeneratesAndEncryptsSecret(t *testing.T) {
	webhooks := newMockWebhookRepository()
	svc, _ := newTestRegistry(t, webhooks)

	webhook, secret, err := svc.Register(context.Background(), RegisterInput{
		OwnerID:         "owner-1",
		IntegrationType: "generic",
		EventType:       "order.created",
		TargetURL:       "https://example.com/hooks",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if webhook.ID == "" {
		t.Error("webhook not assigned an ID")
	}
	if !webhook.IsActive {
		t.Error("new webhook must start active")
	}
	if len(secret) != 64 {
		t.Errorf("generated secret length = %d, want 64 hex chars", len(secret))
	}
	if webhook.SecretEncrypted == secret || webhook.SecretEncrypted == "" {
		t.Error("stored secret must be encrypted, not plaintext")
	}

	// Stored ciphertext round-trips back to the returned secret
	enc := testEncryptor(t)
	decrypted, err := enc.Decrypt(webhook.SecretEncrypted)
	if err != nil {
		t.Fatalf("stored secret does not decrypt: %v", err)
	}
	if decrypted != secret {
		t.Error("decrypted secret does not match returned secret")
	}
}

func TestRegisterKeepsCallerSecret(t *testing.T) {
	webhooks := newMockWebhookRepository()
	svc, _ := newTestRegistry(t, webhooks)

	_, secret, err := svc.Register(context.Background(), RegisterInput{
		OwnerID:   "owner-1",
		EventType: "order.created",
		TargetURL: "https://example.com/hooks",
		Secret:    "caller-chosen-secret",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if secret != "caller-chosen-secret" {
		t.Errorf("secret = %q, want caller's value", secret)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestRegistry(t, newMockWebhookRepository())
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"empty owner", RegisterInput{EventType: "e", TargetURL: "https://example.com"}},
		{"empty event type", RegisterInput{OwnerID: "o", TargetURL: "https://example.com"}},
		{"empty url", RegisterInput{OwnerID: "o", EventType: "e"}},
		{"relative url", RegisterInput{OwnerID: "o", EventType: "e", TargetURL: "/hooks"}},
		{"bad scheme", RegisterInput{OwnerID: "o", EventType: "e", TargetURL: "ftp://example.com/hooks"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tc.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRegisterInvalidatesRoutingCache(t *testing.T) {
	webhooks := newMockWebhookRepository()
	svc, router := newTestRegistry(t, webhooks)
	ctx := context.Background()

	// Prime the cache with an empty result
	if matched, _ := router.Match(ctx, "order.created"); len(matched) != 0 {
		t.Fatalf("expected empty match, got %d", len(matched))
	}

	if _, _, err := svc.Register(ctx, RegisterInput{
		OwnerID:   "owner-1",
		EventType: "order.created",
		TargetURL: "https://example.com/hooks",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	matched, err := router.Match(ctx, "order.created")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matched) != 1 {
		t.Errorf("new webhook invisible to router, matched %d", len(matched))
	}
}

func TestUnregisterSoftDeletesAndInvalidates(t *testing.T) {
	webhooks := newMockWebhookRepository()
	svc, router := newTestRegistry(t, webhooks)
	ctx := context.Background()

	webhook, _, err := svc.Register(ctx, RegisterInput{
		OwnerID:   "owner-1",
		EventType: "order.created",
		TargetURL: "https://example.com/hooks",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if matched, _ := router.Match(ctx, "order.created"); len(matched) != 1 {
		t.Fatal("setup: webhook not routable")
	}

	if err := svc.Unregister(ctx, webhook.ID); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if matched, _ := router.Match(ctx, "order.created"); len(matched) != 0 {
		t.Error("unregistered webhook still routable")
	}

	// Row survives as an inactive record
	got, err := svc.Get(ctx, webhook.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("webhook row removed, expected soft delete")
	}
	if got.IsActive {
		t.Error("webhook still active after unregister")
	}
}

func TestUnregisterUnknownIDIsNoOp(t *testing.T) {
	svc, _ := newTestRegistry(t, newMockWebhookRepository())
	if err := svc.Unregister(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestListFiltersByOwner(t *testing.T) {
	webhooks := newMockWebhookRepository()
	svc, _ := newTestRegistry(t, webhooks)
	ctx := context.Background()

	for _, owner := range []string{"owner-1", "owner-1", "owner-2"} {
		if _, _, err := svc.Register(ctx, RegisterInput{
			OwnerID:   owner,
			EventType: "order.created",
			TargetURL: "https://example.com/hooks",
		}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	list, err := svc.List(ctx, repository.WebhookFilter{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("listed %d webhooks for owner-1, want 2", len(list))
	}
}
