package cashfree

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"TRANSFER_SUCCESS"}`)
	sig := signWebhook("wh-secret", "1712345678000", body)

	if !VerifyWebhookSignature("wh-secret", "1712345678000", body, sig) {
		t.Fatalf("expected valid signature to verify")
	}
	if VerifyWebhookSignature("wh-secret", "1712345678001", body, sig) {
		t.Fatalf("expected timestamp mismatch to fail")
	}
	if VerifyWebhookSignature("other-secret", "1712345678000", body, sig) {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyWebhookSignature("", "1712345678000", body, sig) {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestParseWebhook_TransferEvents(t *testing.T) {
	body := []byte(`{
		"type": "TRANSFER_FAILED",
		"data": {
			"transfer_id": "wd-042",
			"cf_transfer_id": "cf-88",
			"status_code": "BENEFICIARY_BLOCKED",
			"status_description": "beneficiary account is blocked"
		}
	}`)

	event, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Reference != "wd-042" || event.ExternalRef != "cf-88" {
		t.Fatalf("unexpected references: %+v", event)
	}
	if event.Reason != "beneficiary account is blocked" {
		t.Fatalf("unexpected reason %q", event.Reason)
	}

	settles, success := event.Settles()
	if !settles || success {
		t.Fatalf("TRANSFER_FAILED should settle as failure, got settles=%v success=%v", settles, success)
	}
}

func TestParseWebhook_PaymentEvents(t *testing.T) {
	body := []byte(`{
		"type": "PAYMENT_SUCCESS_WEBHOOK",
		"data": {
			"order": {"order_id": "dep-007"},
			"payment": {"cf_payment_id": 991337, "payment_message": "Transaction successful"}
		}
	}`)

	event, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if event.Reference != "dep-007" {
		t.Fatalf("expected order id as reference, got %q", event.Reference)
	}
	if event.ExternalRef != "991337" {
		t.Fatalf("expected numeric payment id flattened to string, got %q", event.ExternalRef)
	}

	settles, success := event.Settles()
	if !settles || !success {
		t.Fatalf("PAYMENT_SUCCESS_WEBHOOK should settle as success, got settles=%v success=%v", settles, success)
	}
}

func TestParseWebhook_UnknownTypeDoesNotSettle(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"type": "TRANSFER_ACKNOWLEDGED", "data": {"transfer_id": "wd-1"}}`))
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if settles, _ := event.Settles(); settles {
		t.Fatalf("acknowledgement events must not settle")
	}
}

func TestParseWebhook_RejectsMissingType(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"data": {}}`)); err == nil {
		t.Fatalf("expected error for payload without type")
	}
}
