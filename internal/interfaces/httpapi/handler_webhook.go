package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/riskibarqy/fantasy-contest/external/cashfree"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// Cashfree redelivers on any non-2xx, so the handler only errors when a
// retry could help. Unknown references are acknowledged and logged.
const maxWebhookBodyBytes = 1 << 20

func (h *Handler) HandleCashfreeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.HandleCashfreeWebhook")
	defer span.End()

	if strings.TrimSpace(h.webhookSecret) == "" {
		writeError(ctx, w, fmt.Errorf("%w: cashfree webhook secret is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: read webhook body: %v", usecase.ErrInvalidInput, err))
		return
	}

	timestamp := r.Header.Get("x-webhook-timestamp")
	signature := r.Header.Get("x-webhook-signature")
	if !cashfree.VerifyWebhookSignature(h.webhookSecret, timestamp, body, signature) {
		h.logger.WarnContext(ctx, "cashfree webhook signature rejected", "client_ip", resolveClientIP(ctx, r))
		writeError(ctx, w, fmt.Errorf("%w: invalid webhook signature", usecase.ErrUnauthorized))
		return
	}

	event, err := cashfree.ParseWebhook(body)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	settles, success := event.Settles()
	if !settles {
		writeSuccess(ctx, w, http.StatusOK, webhookAckDTO{
			EventType: event.Type,
			Reference: event.Reference,
			Handled:   false,
		})
		return
	}

	tx, err := h.ledgerService.ConfirmGatewayOutcome(ctx, usecase.GatewayOutcomeInput{
		Reference:   event.Reference,
		Success:     success,
		ExternalRef: event.ExternalRef,
		Reason:      event.Reason,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			h.logger.WarnContext(ctx, "cashfree webhook for unknown reference",
				"event_type", event.Type,
				"reference", event.Reference,
				"external_ref", event.ExternalRef,
			)
			writeSuccess(ctx, w, http.StatusOK, webhookAckDTO{
				EventType: event.Type,
				Reference: event.Reference,
				Handled:   false,
			})
			return
		}
		h.logger.ErrorContext(ctx, "confirm gateway outcome failed",
			"event_type", event.Type,
			"reference", event.Reference,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "cashfree webhook settled",
		"event_type", event.Type,
		"reference", event.Reference,
		"transaction_id", tx.ID,
		"status", tx.Status,
	)

	writeSuccess(ctx, w, http.StatusOK, webhookAckDTO{
		EventType:         event.Type,
		Reference:         event.Reference,
		Handled:           true,
		TransactionID:     tx.ID,
		TransactionStatus: string(tx.Status),
	})
}

type webhookAckDTO struct {
	EventType         string `json:"eventType"`
	Reference         string `json:"reference,omitempty"`
	Handled           bool   `json:"handled"`
	TransactionID     string `json:"transactionId,omitempty"`
	TransactionStatus string `json:"transactionStatus,omitempty"`
}
