package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetWallet")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	wallet, err := h.ledgerService.Wallet(ctx, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "get wallet failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, walletToDTO(ctx, wallet))
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListWalletTransactions")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	query := r.URL.Query()

	types, err := parseTransactionTypes(query.Get("type"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	statuses, err := parseTransactionStatuses(query.Get("status"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	since, err := parseTimeQuery(query.Get("since"), "since")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	until, err := parseTimeQuery(query.Get("until"), "until")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := parsePositiveIntQuery(query.Get("limit"), "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	offset, err := parseNonNegativeIntQuery(query.Get("offset"), "offset")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	transactions, err := h.ledgerService.ListTransactions(ctx, usecase.ListTransactionsInput{
		UserID:   principal.UserID,
		Types:    types,
		Statuses: statuses,
		Since:    since,
		Until:    until,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "list wallet transactions failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]transactionDTO, 0, len(transactions))
	for _, tx := range transactions {
		items = append(items, transactionToDTO(ctx, tx))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetWalletTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetWalletTransaction")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	transactionID := strings.TrimSpace(r.PathValue("transactionID"))
	tx, err := h.ledgerService.GetTransaction(ctx, principal.UserID, transactionID)
	if err != nil {
		h.logger.WarnContext(ctx, "get wallet transaction failed", "user_id", principal.UserID, "transaction_id", transactionID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, transactionToDTO(ctx, tx))
}

func (h *Handler) GetWalletTransactionByReference(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetWalletTransactionByReference")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	reference := strings.TrimSpace(r.PathValue("reference"))
	tx, err := h.ledgerService.GetTransactionByReference(ctx, principal.UserID, reference)
	if err != nil {
		h.logger.WarnContext(ctx, "get wallet transaction by reference failed", "user_id", principal.UserID, "reference", reference, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, transactionToDTO(ctx, tx))
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateDeposit")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req depositRequest
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

	tx, err := h.ledgerService.Deposit(ctx, usecase.DepositInput{
		UserID:      principal.UserID,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Description: req.Description,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create deposit failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, transactionToDTO(ctx, tx))
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateWithdrawal")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req withdrawalRequest
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

	tx, err := h.ledgerService.Withdraw(ctx, usecase.WithdrawInput{
		UserID:      principal.UserID,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Description: req.Description,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create withdrawal failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, transactionToDTO(ctx, tx))
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateTransfer")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req transferRequest
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

	debit, credit, err := h.ledgerService.Transfer(ctx, usecase.TransferInput{
		FromUserID:  principal.UserID,
		ToUserID:    req.ToUserID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create transfer failed", "user_id", principal.UserID, "to_user_id", req.ToUserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, transferDTO{
		Debit:  transactionToDTO(ctx, debit),
		Credit: transactionToDTO(ctx, credit),
	})
}

func parseTransactionTypes(raw string) ([]ledger.Type, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	types := make([]ledger.Type, 0, len(parts))
	for _, part := range parts {
		candidate := ledger.Type(strings.ToLower(strings.TrimSpace(part)))
		if candidate == "" {
			continue
		}
		if _, known := ledger.AllTypes[candidate]; !known {
			return nil, fmt.Errorf("%w: unknown transaction type %s", usecase.ErrInvalidInput, candidate)
		}
		types = append(types, candidate)
	}
	return types, nil
}

func parseTransactionStatuses(raw string) ([]ledger.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]ledger.Status, 0, len(parts))
	for _, part := range parts {
		candidate := ledger.Status(strings.ToLower(strings.TrimSpace(part)))
		if candidate == "" {
			continue
		}
		switch candidate {
		case ledger.StatusPending, ledger.StatusCompleted, ledger.StatusFailed,
			ledger.StatusCancelled, ledger.StatusRefunded:
		default:
			return nil, fmt.Errorf("%w: unknown transaction status %s", usecase.ErrInvalidInput, candidate)
		}
		statuses = append(statuses, candidate)
	}
	return statuses, nil
}

func parseTimeQuery(raw, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC3339 timestamp", usecase.ErrInvalidInput, name)
	}
	return t, nil
}

func parsePositiveIntQuery(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive integer", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

func parseNonNegativeIntQuery(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

type depositRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Fee         decimal.Decimal `json:"fee"`
	Description string          `json:"description" validate:"max=255"`
}

type withdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Fee         decimal.Decimal `json:"fee"`
	Description string          `json:"description" validate:"max=255"`
}

type transferRequest struct {
	ToUserID    string          `json:"toUserId" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description" validate:"max=255"`
}

type walletDTO struct {
	UserID         string `json:"userId"`
	Currency       string `json:"currency"`
	Balance        string `json:"balance"`
	TotalDeposited string `json:"totalDeposited"`
	TotalWithdrawn string `json:"totalWithdrawn"`
	TotalWon       string `json:"totalWon"`
	UpdatedAt      string `json:"updatedAt"`
}

type transferDTO struct {
	Debit  transactionDTO `json:"debit"`
	Credit transactionDTO `json:"credit"`
}

type transactionDTO struct {
	ID              string            `json:"id"`
	Reference       string            `json:"reference"`
	Type            string            `json:"type"`
	Status          string            `json:"status"`
	Amount          string            `json:"amount"`
	Fee             string            `json:"fee"`
	NetAmount       string            `json:"netAmount"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ContestID       string            `json:"contestId,omitempty"`
	CounterpartyID  string            `json:"counterpartyId,omitempty"`
	LinkedReference string            `json:"linkedReference,omitempty"`
	ExternalRef     string            `json:"externalRef,omitempty"`
	BalanceBefore   string            `json:"balanceBefore,omitempty"`
	BalanceAfter    string            `json:"balanceAfter,omitempty"`
	FailureReason   string            `json:"failureReason,omitempty"`
	RetryCount      int               `json:"retryCount"`
	NextRetryAt     string            `json:"nextRetryAt,omitempty"`
	ProcessedAt     string            `json:"processedAt,omitempty"`
	IsReversible    bool              `json:"isReversible"`
	ReversedAt      string            `json:"reversedAt,omitempty"`
	ReversalReason  string            `json:"reversalReason,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
}

func walletToDTO(ctx context.Context, v ledger.Wallet) walletDTO {
	ctx, span := startSpan(ctx, "httpapi.walletToDTO")
	defer span.End()

	return walletDTO{
		UserID:         v.UserID,
		Currency:       v.Currency,
		Balance:        v.Balance.String(),
		TotalDeposited: v.TotalDeposited.String(),
		TotalWithdrawn: v.TotalWithdrawn.String(),
		TotalWon:       v.TotalWon.String(),
		UpdatedAt:      v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func transactionToDTO(ctx context.Context, v ledger.Transaction) transactionDTO {
	ctx, span := startSpan(ctx, "httpapi.transactionToDTO")
	defer span.End()

	dto := transactionDTO{
		ID:              v.ID,
		Reference:       v.Reference,
		Type:            string(v.Type),
		Status:          string(v.Status),
		Amount:          v.Amount.String(),
		Fee:             v.Fee.String(),
		NetAmount:       v.NetAmount.String(),
		Currency:        v.Currency,
		Description:     v.Description,
		ContestID:       v.ContestID,
		CounterpartyID:  v.CounterpartyID,
		LinkedReference: v.LinkedReference,
		ExternalRef:     v.ExternalRef,
		FailureReason:   v.FailureReason,
		RetryCount:      v.RetryCount,
		IsReversible:    v.IsReversible,
		ReversalReason:  v.ReversalReason,
		CreatedAt:       v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       v.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if len(v.Metadata) > 0 {
		dto.Metadata = make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			dto.Metadata[k] = val
		}
	}
	if v.BalanceBefore != nil {
		dto.BalanceBefore = v.BalanceBefore.String()
	}
	if v.BalanceAfter != nil {
		dto.BalanceAfter = v.BalanceAfter.String()
	}
	if v.NextRetryAt != nil {
		dto.NextRetryAt = v.NextRetryAt.UTC().Format(time.RFC3339)
	}
	if v.ProcessedAt != nil {
		dto.ProcessedAt = v.ProcessedAt.UTC().Format(time.RFC3339)
	}
	if v.ReversedAt != nil {
		dto.ReversedAt = v.ReversedAt.UTC().Format(time.RFC3339)
	}

	return dto
}
