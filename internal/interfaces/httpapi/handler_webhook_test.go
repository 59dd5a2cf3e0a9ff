package httpapi

import (
	"net/http"
	"testing"
)

func TestRouter_WebhookRejectsBadSignature(t *testing.T) {
	env := newRouterEnv(t)

	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"dep-x"}}}`)
	rec := env.deliverWebhook(t, body, "bm90LXRoZS1yaWdodC1tYWM=")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_WebhookAcknowledgesIgnoredEvent(t *testing.T) {
	env := newRouterEnv(t)

	body := []byte(`{"type":"TRANSFER_ACKNOWLEDGED","data":{"transfer_id":"wd-123"}}`)
	rec := env.deliverWebhook(t, body, signWebhook(testWebhookSecret, "1756100000", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ack := decodeDataObject(t, rec)
	if handled, _ := ack["handled"].(bool); handled {
		t.Fatalf("acknowledgement events must not be handled, got %v", ack)
	}
}

func TestRouter_WebhookAcknowledgesUnknownReference(t *testing.T) {
	env := newRouterEnv(t)

	// Cashfree redelivers on non-2xx forever, so an unknown reference is
	// acknowledged instead of erroring.
	body := []byte(`{"type":"TRANSFER_SUCCESS","data":{"transfer_id":"wd-never-existed","cf_transfer_id":"cf-1"}}`)
	rec := env.deliverWebhook(t, body, signWebhook(testWebhookSecret, "1756100000", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ack := decodeDataObject(t, rec)
	if handled, _ := ack["handled"].(bool); handled {
		t.Fatalf("unknown reference must not be handled, got %v", ack)
	}
}

func TestRouter_WebhookFailureKeepsHoldForRetry(t *testing.T) {
	env := newRouterEnv(t)
	env.fund(t, "user-wd", 200)

	rec := env.do(t, http.MethodPost, "/v1/wallet/withdrawals", "user-wd", map[string]any{
		"amount": "150",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("withdrawal failed with status %d: %s", rec.Code, rec.Body.String())
	}
	pending := decodeDataObject(t, rec)
	reference, _ := pending["reference"].(string)
	if reference == "" {
		t.Fatal("expected a ledger reference on the withdrawal")
	}

	// The hold is immediate.
	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-wd", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "50" {
		t.Fatalf("expected balance 50 while payout pending, got %v", got)
	}

	body := []byte(`{"type":"TRANSFER_FAILED","data":{"transfer_id":"` + reference + `","status_description":"beneficiary bank down"}}`)
	rec = env.deliverWebhook(t, body, signWebhook(testWebhookSecret, "1756100000", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ack := decodeDataObject(t, rec)
	if handled, _ := ack["handled"].(bool); !handled {
		t.Fatalf("expected failure event to be handled, got %v", ack)
	}

	rec = env.do(t, http.MethodGet, "/v1/wallet/transactions/by-reference/"+reference, "user-wd", nil)
	failed := decodeDataObject(t, rec)
	if failed["status"] != "failed" {
		t.Fatalf("expected failed withdrawal, got %v", failed["status"])
	}
	if failed["failureReason"] != "beneficiary bank down" {
		t.Fatalf("expected failure reason from gateway, got %v", failed["failureReason"])
	}
	if retries, _ := failed["retryCount"].(float64); retries != 1 {
		t.Fatalf("expected first retry recorded, got %v", failed["retryCount"])
	}
	if failed["nextRetryAt"] == nil {
		t.Fatal("expected a scheduled retry")
	}

	// Retries may still succeed, so the hold stays until they exhaust.
	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-wd", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "50" {
		t.Fatalf("expected hold kept at balance 50, got %v", got)
	}
}
