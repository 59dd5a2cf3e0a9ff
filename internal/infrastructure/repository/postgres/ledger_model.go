package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
)

type walletTableModel struct {
	ID             int64           `db:"id"`
	UserID         string          `db:"user_id"`
	Currency       string          `db:"currency"`
	Balance        decimal.Decimal `db:"balance"`
	TotalDeposited decimal.Decimal `db:"total_deposited"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn"`
	TotalWon       decimal.Decimal `db:"total_won"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// walletInsertModel omits the bigserial id so InsertModel never fights
// the sequence.
type walletInsertModel struct {
	UserID         string          `db:"user_id"`
	Currency       string          `db:"currency"`
	Balance        decimal.Decimal `db:"balance"`
	TotalDeposited decimal.Decimal `db:"total_deposited"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn"`
	TotalWon       decimal.Decimal `db:"total_won"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func walletFromRow(row walletTableModel) ledger.Wallet {
	return ledger.Wallet{
		UserID:         row.UserID,
		Currency:       row.Currency,
		Balance:        row.Balance,
		TotalDeposited: row.TotalDeposited,
		TotalWithdrawn: row.TotalWithdrawn,
		TotalWon:       row.TotalWon,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

type transactionTableModel struct {
	ID              string              `db:"id"`
	Reference       string              `db:"reference"`
	UserID          string              `db:"user_id"`
	Type            string              `db:"type"`
	Status          string              `db:"status"`
	Amount          decimal.Decimal     `db:"amount"`
	Fee             decimal.Decimal     `db:"fee"`
	NetAmount       decimal.Decimal     `db:"net_amount"`
	Currency        string              `db:"currency"`
	Description     string              `db:"description"`
	Metadata        []byte              `db:"metadata"`
	ContestID       sql.NullString      `db:"contest_id"`
	CounterpartyID  sql.NullString      `db:"counterparty_id"`
	LinkedReference sql.NullString      `db:"linked_reference"`
	ExternalRef     sql.NullString      `db:"external_ref"`
	BalanceApplied  bool                `db:"balance_applied"`
	BalanceBefore   decimal.NullDecimal `db:"balance_before"`
	BalanceAfter    decimal.NullDecimal `db:"balance_after"`
	FailureReason   string              `db:"failure_reason"`
	RetryCount      int                 `db:"retry_count"`
	MaxRetries      int                 `db:"max_retries"`
	NextRetryAt     *time.Time          `db:"next_retry_at"`
	ProcessedAt     *time.Time          `db:"processed_at"`
	IsReversible    bool                `db:"is_reversible"`
	ReversedAt      *time.Time          `db:"reversed_at"`
	ReversedBy      string              `db:"reversed_by"`
	ReversalReason  string              `db:"reversal_reason"`
	Version         int64               `db:"version"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

var transactionSelectColumns = []string{
	"id",
	"reference",
	"user_id",
	"type",
	"status",
	"amount",
	"fee",
	"net_amount",
	"currency",
	"description",
	"metadata",
	"contest_id",
	"counterparty_id",
	"linked_reference",
	"external_ref",
	"balance_applied",
	"balance_before",
	"balance_after",
	"failure_reason",
	"retry_count",
	"max_retries",
	"next_retry_at",
	"processed_at",
	"is_reversible",
	"reversed_at",
	"reversed_by",
	"reversal_reason",
	"version",
	"created_at",
	"updated_at",
}

var walletSelectColumns = []string{
	"id",
	"user_id",
	"currency",
	"balance",
	"total_deposited",
	"total_withdrawn",
	"total_won",
	"version",
	"created_at",
	"updated_at",
}

func transactionToRow(tx ledger.Transaction) (transactionTableModel, error) {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return transactionTableModel{}, fmt.Errorf("marshal transaction metadata: %w", err)
	}

	return transactionTableModel{
		ID:              tx.ID,
		Reference:       tx.Reference,
		UserID:          tx.UserID,
		Type:            string(tx.Type),
		Status:          string(tx.Status),
		Amount:          tx.Amount,
		Fee:             tx.Fee,
		NetAmount:       tx.NetAmount,
		Currency:        tx.Currency,
		Description:     tx.Description,
		Metadata:        metadata,
		ContestID:       toNullString(tx.ContestID),
		CounterpartyID:  toNullString(tx.CounterpartyID),
		LinkedReference: toNullString(tx.LinkedReference),
		ExternalRef:     toNullString(tx.ExternalRef),
		BalanceApplied:  tx.BalanceApplied,
		BalanceBefore:   toNullDecimal(tx.BalanceBefore),
		BalanceAfter:    toNullDecimal(tx.BalanceAfter),
		FailureReason:   tx.FailureReason,
		RetryCount:      tx.RetryCount,
		MaxRetries:      tx.MaxRetries,
		NextRetryAt:     tx.NextRetryAt,
		ProcessedAt:     tx.ProcessedAt,
		IsReversible:    tx.IsReversible,
		ReversedAt:      tx.ReversedAt,
		ReversedBy:      tx.ReversedBy,
		ReversalReason:  tx.ReversalReason,
		Version:         tx.Version,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}, nil
}

func transactionFromRow(row transactionTableModel) (ledger.Transaction, error) {
	metadata, err := unmarshalMetadata(row.Metadata)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("unmarshal transaction %s metadata: %w", row.ID, err)
	}

	return ledger.Transaction{
		ID:              row.ID,
		Reference:       row.Reference,
		UserID:          row.UserID,
		Type:            ledger.Type(row.Type),
		Status:          ledger.Status(row.Status),
		Amount:          row.Amount,
		Fee:             row.Fee,
		NetAmount:       row.NetAmount,
		Currency:        row.Currency,
		Description:     row.Description,
		Metadata:        metadata,
		ContestID:       row.ContestID.String,
		CounterpartyID:  row.CounterpartyID.String,
		LinkedReference: row.LinkedReference.String,
		ExternalRef:     row.ExternalRef.String,
		BalanceApplied:  row.BalanceApplied,
		BalanceBefore:   fromNullDecimal(row.BalanceBefore),
		BalanceAfter:    fromNullDecimal(row.BalanceAfter),
		FailureReason:   row.FailureReason,
		RetryCount:      row.RetryCount,
		MaxRetries:      row.MaxRetries,
		NextRetryAt:     row.NextRetryAt,
		ProcessedAt:     row.ProcessedAt,
		IsReversible:    row.IsReversible,
		ReversedAt:      row.ReversedAt,
		ReversedBy:      row.ReversedBy,
		ReversalReason:  row.ReversalReason,
		Version:         row.Version,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	return sonic.Marshal(metadata)
}

func unmarshalMetadata(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]string
	if err := sonic.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}

func toNullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func toNullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func fromNullDecimal(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	copied := value.Decimal
	return &copied
}
