package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	qb "github.com/riskibarqy/fantasy-contest/internal/platform/querybuilder"
)

// LedgerRepository persists wallets and transactions. The combined
// write methods run inside one database transaction so a wallet
// mutation can never be observed without the ledger row that caused it.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *LedgerRepository) GetWallet(ctx context.Context, userID string) (ledger.Wallet, bool, error) {
	query, args, err := qb.Select(walletSelectColumns...).From("wallets").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return ledger.Wallet{}, false, fmt.Errorf("build get wallet query: %w", err)
	}

	var row walletTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return ledger.Wallet{}, false, nil
		}
		return ledger.Wallet{}, false, fmt.Errorf("get wallet: %w", err)
	}

	return walletFromRow(row), true, nil
}

func (r *LedgerRepository) CreateWallet(ctx context.Context, wallet ledger.Wallet) error {
	query, args, err := qb.InsertModel("wallets", walletInsertModel{
		UserID:         wallet.UserID,
		Currency:       wallet.Currency,
		Balance:        wallet.Balance,
		TotalDeposited: wallet.TotalDeposited,
		TotalWithdrawn: wallet.TotalWithdrawn,
		TotalWon:       wallet.TotalWon,
		Version:        wallet.Version,
		CreatedAt:      wallet.CreatedAt,
		UpdatedAt:      wallet.UpdatedAt,
	}, "")
	if err != nil {
		return fmt.Errorf("build insert wallet query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrVersionConflict
		}
		return fmt.Errorf("insert wallet user=%s: %w", wallet.UserID, err)
	}

	return nil
}

func (r *LedgerRepository) UpdateWallet(ctx context.Context, wallet ledger.Wallet) error {
	return r.updateWallet(ctx, r.db, wallet)
}

func (r *LedgerRepository) updateWallet(ctx context.Context, exec sqlExecutor, wallet ledger.Wallet) error {
	query, args, err := qb.Update("wallets").
		Set("balance", wallet.Balance).
		Set("total_deposited", wallet.TotalDeposited).
		Set("total_withdrawn", wallet.TotalWithdrawn).
		Set("total_won", wallet.TotalWon).
		Set("updated_at", wallet.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("user_id", wallet.UserID),
			qb.Eq("version", wallet.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update wallet query: %w", err)
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update wallet user=%s: %w", wallet.UserID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wallet rows affected: %w", err)
	}
	if affected == 0 {
		return ledger.ErrVersionConflict
	}

	return nil
}

func (r *LedgerRepository) GetTransaction(ctx context.Context, transactionID string) (ledger.Transaction, bool, error) {
	return r.getTransactionBy(ctx, qb.Eq("id", transactionID), "get transaction")
}

func (r *LedgerRepository) GetTransactionByReference(ctx context.Context, reference string) (ledger.Transaction, bool, error) {
	return r.getTransactionBy(ctx, qb.Eq("reference", reference), "get transaction by reference")
}

func (r *LedgerRepository) getTransactionBy(ctx context.Context, cond qb.Condition, op string) (ledger.Transaction, bool, error) {
	query, args, err := qb.Select(transactionSelectColumns...).From("transactions").
		Where(cond).
		ToSQL()
	if err != nil {
		return ledger.Transaction{}, false, fmt.Errorf("build %s query: %w", op, err)
	}

	var row transactionTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return ledger.Transaction{}, false, nil
		}
		return ledger.Transaction{}, false, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := transactionFromRow(row)
	if err != nil {
		return ledger.Transaction{}, false, err
	}

	return tx, true, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	builder := qb.Select(transactionSelectColumns...).From("transactions")

	if filter.UserID != "" {
		builder = builder.Where(qb.Eq("user_id", filter.UserID))
	}
	if len(filter.Types) > 0 {
		values := make([]any, 0, len(filter.Types))
		for _, t := range filter.Types {
			values = append(values, string(t))
		}
		builder = builder.Where(qb.In("type", values))
	}
	if len(filter.Statuses) > 0 {
		values := make([]any, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			values = append(values, string(s))
		}
		builder = builder.Where(qb.In("status", values))
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(qb.Expr("created_at >= ?", filter.Since))
	}
	if !filter.Until.IsZero() {
		builder = builder.Where(qb.Expr("created_at <= ?", filter.Until))
	}

	query, args, err := builder.
		OrderBy("created_at DESC", "id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list transactions query: %w", err)
	}

	var rows []transactionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return transactionsFromRows(rows)
}

func (r *LedgerRepository) ListTransactionsDueForRetry(ctx context.Context, now time.Time, limit int) ([]ledger.Transaction, error) {
	query, args, err := qb.Select(transactionSelectColumns...).From("transactions").
		Where(
			qb.Eq("status", string(ledger.StatusFailed)),
			qb.Expr("next_retry_at IS NOT NULL"),
			qb.Expr("next_retry_at <= ?", now),
		).
		OrderBy("next_retry_at", "id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due retries query: %w", err)
	}

	var rows []transactionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list due retries: %w", err)
	}

	return transactionsFromRows(rows)
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return r.insertTransaction(ctx, r.db, tx)
}

func (r *LedgerRepository) insertTransaction(ctx context.Context, exec sqlExecutor, tx ledger.Transaction) error {
	row, err := transactionToRow(tx)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel("transactions", row, "")
	if err != nil {
		return fmt.Errorf("build insert transaction query: %w", err)
	}

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction reference=%s: %w", tx.Reference, err)
	}

	return nil
}

func (r *LedgerRepository) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	return r.updateTransaction(ctx, r.db, tx)
}

func (r *LedgerRepository) updateTransaction(ctx context.Context, exec sqlExecutor, tx ledger.Transaction) error {
	row, err := transactionToRow(tx)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("transactions").
		Set("status", row.Status).
		Set("balance_applied", row.BalanceApplied).
		Set("balance_before", row.BalanceBefore).
		Set("balance_after", row.BalanceAfter).
		Set("failure_reason", row.FailureReason).
		Set("retry_count", row.RetryCount).
		Set("next_retry_at", row.NextRetryAt).
		Set("processed_at", row.ProcessedAt).
		Set("external_ref", row.ExternalRef).
		Set("reversed_at", row.ReversedAt).
		Set("reversed_by", row.ReversedBy).
		Set("reversal_reason", row.ReversalReason).
		Set("updated_at", row.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("id", tx.ID),
			qb.Eq("version", tx.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update transaction query: %w", err)
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction id=%s: %w", tx.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction rows affected: %w", err)
	}
	if affected == 0 {
		return ledger.ErrVersionConflict
	}

	return nil
}

func (r *LedgerRepository) CreateTransactionApplied(ctx context.Context, tx ledger.Transaction, wallet ledger.Wallet) error {
	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := r.insertTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	if err := r.updateWallet(ctx, dbTx, wallet); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ApplyTransition(ctx context.Context, tx ledger.Transaction, wallet ledger.Wallet) error {
	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := r.updateTransaction(ctx, dbTx, tx); err != nil {
		return err
	}
	if err := r.updateWallet(ctx, dbTx, wallet); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

func (r *LedgerRepository) CreateTransferApplied(ctx context.Context, debit, credit ledger.Transaction, from, to ledger.Wallet) error {
	dbTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	if err := r.insertTransaction(ctx, dbTx, debit); err != nil {
		return err
	}
	if err := r.insertTransaction(ctx, dbTx, credit); err != nil {
		return err
	}
	if err := r.updateWallet(ctx, dbTx, from); err != nil {
		return err
	}
	if err := r.updateWallet(ctx, dbTx, to); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}
	return nil
}

func transactionsFromRows(rows []transactionTableModel) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
