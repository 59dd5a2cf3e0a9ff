package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// The admin surface is reachable only through the internal job token,
// the platform has no end-user role model.

func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateGrant")
	defer span.End()

	var req grantRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	tx, err := h.ledgerService.Grant(ctx, usecase.GrantInput{
		UserID:      req.UserID,
		Type:        ledger.Type(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create grant failed", "user_id", req.UserID, "type", req.Type, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, transactionToDTO(ctx, tx))
}

func (h *Handler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ReverseTransaction")
	defer span.End()

	transactionID := strings.TrimSpace(r.PathValue("transactionID"))

	var req reverseTransactionRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	tx, err := h.ledgerService.Reverse(ctx, transactionID, req.Reason, req.Actor)
	if err != nil {
		h.logger.WarnContext(ctx, "reverse transaction failed", "transaction_id", transactionID, "actor", req.Actor, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, transactionToDTO(ctx, tx))
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelTransaction")
	defer span.End()

	transactionID := strings.TrimSpace(r.PathValue("transactionID"))

	var req cancelTransactionRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	tx, err := h.ledgerService.Cancel(ctx, transactionID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel transaction failed", "transaction_id", transactionID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, transactionToDTO(ctx, tx))
}

func (h *Handler) RetryTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RetryTransaction")
	defer span.End()

	transactionID := strings.TrimSpace(r.PathValue("transactionID"))
	tx, err := h.ledgerService.Retry(ctx, transactionID)
	if err != nil {
		h.logger.WarnContext(ctx, "retry transaction failed", "transaction_id", transactionID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, transactionToDTO(ctx, tx))
}

func (h *Handler) CancelContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelContest")
	defer span.End()

	contestID := strings.TrimSpace(r.PathValue("contestID"))

	var req cancelContestRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.contestService.Cancel(ctx, contestID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel contest failed", "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, cancellationResultDTO{
		ContestID:        result.ContestID,
		AlreadyCancelled: result.AlreadyCancelled,
		Participants:     result.Participants,
		Refunded:         result.Refunded,
		AlreadyRefunded:  result.AlreadyRefunded,
		Failed:           result.Failed,
	})
}

type grantRequest struct {
	UserID      string            `json:"userId" validate:"required"`
	Type        string            `json:"type" validate:"required,oneof=bonus referral_bonus admin_adjustment"`
	Amount      decimal.Decimal   `json:"amount" validate:"required"`
	Description string            `json:"description" validate:"max=255"`
	Metadata    map[string]string `json:"metadata"`
}

type reverseTransactionRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
	Actor  string `json:"actor" validate:"required,max=100"`
}

type cancelTransactionRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type cancelContestRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type cancellationResultDTO struct {
	ContestID        string `json:"contestId"`
	AlreadyCancelled bool   `json:"alreadyCancelled"`
	Participants     int    `json:"participants"`
	Refunded         int    `json:"refunded"`
	AlreadyRefunded  int    `json:"alreadyRefunded"`
	Failed           int    `json:"failed"`
}
