package handlers

import (
	"context"
	"testing"
)

func registerTestWebhook(t *testing.T, h *WebhookHandler, eventType string) (string, string) {
	t.Helper()
	out, err := h.CreateWebhook(context.Background(), &CreateWebhookInput{
		Body: WebhookInput{
			OwnerID:   "owner-1",
			EventType: eventType,
			TargetURL: "https://example.com/hooks",
		},
	})
	if err != nil {
		t.Fatalf("CreateWebhook failed: %v", err)
	}
	return out.Body.Webhook.ID, out.Body.Secret
}

func TestCreateWebhookReturnsSecretOnce(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)

	out, err := h.CreateWebhook(context.Background(), &CreateWebhookInput{
		Body: WebhookInput{
			OwnerID:   "owner-1",
			EventType: "order.created",
			TargetURL: "https://example.com/hooks",
		},
	})
	if err != nil {
		t.Fatalf("CreateWebhook failed: %v", err)
	}

	if out.Body.Secret == "" {
		t.Error("creation response must include the secret")
	}
	if !out.Body.Webhook.HasSecret {
		t.Error("has_secret should be true")
	}
	if !out.Body.Webhook.IsActive {
		t.Error("new webhook should be active")
	}

	// Subsequent reads never expose the secret
	got, err := h.GetWebhook(context.Background(), &GetWebhookInput{ID: out.Body.Webhook.ID})
	if err != nil {
		t.Fatalf("GetWebhook failed: %v", err)
	}
	if !got.Body.HasSecret {
		t.Error("has_secret lost on read")
	}
}

func TestCreateWebhookRejectsBadURL(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)

	_, err := h.CreateWebhook(context.Background(), &CreateWebhookInput{
		Body: WebhookInput{
			OwnerID:   "owner-1",
			EventType: "order.created",
			TargetURL: "not-a-url",
		},
	})
	if err == nil {
		t.Fatal("expected validation error for relative URL")
	}
}

func TestGetWebhookNotFound(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)

	if _, err := h.GetWebhook(context.Background(), &GetWebhookInput{ID: "missing"}); err == nil {
		t.Fatal("expected 404 error")
	}
}

func TestDeleteWebhookIdempotent(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)
	id, _ := registerTestWebhook(t, h, "order.created")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		out, err := h.DeleteWebhook(ctx, &DeleteWebhookInput{ID: id})
		if err != nil {
			t.Fatalf("DeleteWebhook #%d failed: %v", i+1, err)
		}
		if !out.Body.Success {
			t.Error("delete should report success")
		}
	}

	// Deleting an unknown ID also succeeds
	if _, err := h.DeleteWebhook(ctx, &DeleteWebhookInput{ID: "never-existed"}); err != nil {
		t.Fatalf("delete of unknown ID failed: %v", err)
	}

	got, err := h.GetWebhook(ctx, &GetWebhookInput{ID: id})
	if err != nil {
		t.Fatalf("GetWebhook failed: %v", err)
	}
	if got.Body.IsActive {
		t.Error("webhook still active after delete")
	}
}

func TestListWebhooksFilters(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)
	ctx := context.Background()

	registerTestWebhook(t, h, "order.created")
	registerTestWebhook(t, h, "order.created")
	registerTestWebhook(t, h, "user.created")

	out, err := h.ListWebhooks(ctx, &ListWebhooksInput{EventType: "order.created"})
	if err != nil {
		t.Fatalf("ListWebhooks failed: %v", err)
	}
	if len(out.Body.Webhooks) != 2 {
		t.Errorf("listed %d, want 2", len(out.Body.Webhooks))
	}

	all, err := h.ListWebhooks(ctx, &ListWebhooksInput{})
	if err != nil {
		t.Fatalf("ListWebhooks failed: %v", err)
	}
	if len(all.Body.Webhooks) != 3 {
		t.Errorf("listed %d, want 3", len(all.Body.Webhooks))
	}
}

func TestListDeliveriesUnknownWebhook(t *testing.T) {
	svcs := newTestServices(t)
	h := NewWebhookHandler(svcs.Registry)

	if _, err := h.ListDeliveries(context.Background(), &ListDeliveriesInput{ID: "missing", Limit: 10}); err == nil {
		t.Fatal("expected 404 for unknown webhook")
	}
}
