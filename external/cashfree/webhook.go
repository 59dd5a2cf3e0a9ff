package cashfree

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	sonic "github.com/bytedance/sonic"
)

// Webhook event types the payout and payment surfaces deliver. Anything
// outside this set is acknowledged and dropped.
const (
	EventTransferSuccess  = "TRANSFER_SUCCESS"
	EventTransferFailed   = "TRANSFER_FAILED"
	EventTransferRejected = "TRANSFER_REJECTED"
	EventTransferReversed = "TRANSFER_REVERSED"
	EventPaymentSuccess   = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed    = "PAYMENT_FAILED_WEBHOOK"
)

// WebhookEvent is the decoded, flattened form of one callback. Reference
// carries our ledger reference regardless of which product sent the
// event: transfer callbacks put it in transfer_id, payment callbacks in
// the order id.
type WebhookEvent struct {
	Type        string
	Reference   string
	ExternalRef string
	Reason      string
}

// Settles reports whether this event resolves a pending transaction at
// all, and if so whether it succeeded. Acknowledgement-style events
// return (false, _) and must not touch the ledger.
func (e WebhookEvent) Settles() (settles, success bool) {
	switch e.Type {
	case EventTransferSuccess, EventPaymentSuccess:
		return true, true
	case EventTransferFailed, EventTransferRejected, EventTransferReversed, EventPaymentFailed:
		return true, false
	default:
		return false, false
	}
}

type webhookEnvelope struct {
	Type string      `json:"type"`
	Data webhookData `json:"data"`
}

type webhookData struct {
	TransferID        string              `json:"transfer_id"`
	CfTransferID      string              `json:"cf_transfer_id"`
	StatusCode        string              `json:"status_code"`
	StatusDescription string              `json:"status_description"`
	Order             webhookOrder        `json:"order"`
	Payment           webhookPayment      `json:"payment"`
	ErrorDetails      webhookErrorDetails `json:"error_details"`
}

type webhookOrder struct {
	OrderID string `json:"order_id"`
}

type webhookPayment struct {
	CfPaymentID sonicNumber `json:"cf_payment_id"`
	Message     string      `json:"payment_message"`
}

type webhookErrorDetails struct {
	Description string `json:"error_description"`
}

// sonicNumber tolerates the payment id arriving as either a JSON number
// or a string, which differs between callback versions.
type sonicNumber string

func (n *sonicNumber) UnmarshalJSON(raw []byte) error {
	text := strings.TrimSpace(string(raw))
	text = strings.Trim(text, `"`)
	if text == "null" {
		text = ""
	}
	*n = sonicNumber(text)
	return nil
}

// ParseWebhook decodes one callback body into the flattened event.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}

	eventType := strings.ToUpper(strings.TrimSpace(envelope.Type))
	if eventType == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload carries no type")
	}

	event := WebhookEvent{Type: eventType}
	switch eventType {
	case EventPaymentSuccess, EventPaymentFailed:
		event.Reference = strings.TrimSpace(envelope.Data.Order.OrderID)
		event.ExternalRef = strings.TrimSpace(string(envelope.Data.Payment.CfPaymentID))
		event.Reason = firstNonEmpty(envelope.Data.ErrorDetails.Description, envelope.Data.Payment.Message)
	default:
		event.Reference = strings.TrimSpace(envelope.Data.TransferID)
		event.ExternalRef = strings.TrimSpace(envelope.Data.CfTransferID)
		event.Reason = firstNonEmpty(envelope.Data.StatusDescription, envelope.Data.StatusCode)
	}
	return event, nil
}

// VerifyWebhookSignature checks the provider signature over one callback:
// base64(hmac-sha256(timestamp + body, secret)), delivered in the
// x-webhook-signature header next to x-webhook-timestamp.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string) bool {
	secret = strings.TrimSpace(secret)
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
