package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
)

// LedgerRepository keeps wallets and transactions behind one mutex so
// the combined write methods are genuinely atomic.
type LedgerRepository struct {
	mu           sync.RWMutex
	wallets      map[string]ledger.Wallet
	transactions map[string]ledger.Transaction
	byReference  map[string]string
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		wallets:      make(map[string]ledger.Wallet),
		transactions: make(map[string]ledger.Transaction),
		byReference:  make(map[string]string),
	}
}

func (r *LedgerRepository) GetWallet(_ context.Context, userID string) (ledger.Wallet, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[userID]
	if !ok {
		return ledger.Wallet{}, false, nil
	}

	return w, true, nil
}

func (r *LedgerRepository) CreateWallet(_ context.Context, wallet ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.wallets[wallet.UserID]; exists {
		return ledger.ErrVersionConflict
	}

	r.wallets[wallet.UserID] = wallet
	return nil
}

func (r *LedgerRepository) UpdateWallet(_ context.Context, wallet ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storeWalletLocked(wallet)
}

func (r *LedgerRepository) GetTransaction(_ context.Context, transactionID string) (ledger.Transaction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.transactions[transactionID]
	if !ok {
		return ledger.Transaction{}, false, nil
	}

	return cloneTransaction(tx), true, nil
}

func (r *LedgerRepository) GetTransactionByReference(_ context.Context, reference string) (ledger.Transaction, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byReference[reference]
	if !ok {
		return ledger.Transaction{}, false, nil
	}

	return cloneTransaction(r.transactions[id]), true, nil
}

func (r *LedgerRepository) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]ledger.Transaction, 0)
	for _, tx := range r.transactions {
		if !matchesFilter(tx, filter) {
			continue
		}
		matched = append(matched, cloneTransaction(tx))
	}

	// Newest first, id as the tiebreaker so pagination is stable.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []ledger.Transaction{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (r *LedgerRepository) ListTransactionsDueForRetry(_ context.Context, now time.Time, limit int) ([]ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]ledger.Transaction, 0)
	for _, tx := range r.transactions {
		if tx.Status != ledger.StatusFailed || tx.NextRetryAt == nil {
			continue
		}
		if tx.NextRetryAt.After(now) {
			continue
		}
		due = append(due, cloneTransaction(tx))
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRetryAt.Equal(*due[j].NextRetryAt) {
			return due[i].NextRetryAt.Before(*due[j].NextRetryAt)
		}
		return due[i].ID < due[j].ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *LedgerRepository) CreateTransaction(_ context.Context, tx ledger.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insertTransactionLocked(tx)
}

func (r *LedgerRepository) UpdateTransaction(_ context.Context, tx ledger.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storeTransactionLocked(tx)
}

func (r *LedgerRepository) CreateTransactionApplied(_ context.Context, tx ledger.Transaction, wallet ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insertTransactionLocked(tx); err != nil {
		return err
	}
	if err := r.storeWalletLocked(wallet); err != nil {
		r.removeTransactionLocked(tx)
		return err
	}

	return nil
}

func (r *LedgerRepository) ApplyTransition(_ context.Context, tx ledger.Transaction, wallet ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.transactions[tx.ID]
	if !ok || stored.Version != tx.Version {
		return ledger.ErrVersionConflict
	}
	if err := r.storeWalletLocked(wallet); err != nil {
		return err
	}

	next := cloneTransaction(tx)
	next.Version++
	r.transactions[tx.ID] = next
	return nil
}

func (r *LedgerRepository) CreateTransferApplied(_ context.Context, debit, credit ledger.Transaction, from, to ledger.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insertTransactionLocked(debit); err != nil {
		return err
	}
	if err := r.insertTransactionLocked(credit); err != nil {
		r.removeTransactionLocked(debit)
		return err
	}
	if err := r.storeWalletLocked(from); err != nil {
		r.removeTransactionLocked(debit)
		r.removeTransactionLocked(credit)
		return err
	}
	if err := r.storeWalletLocked(to); err != nil {
		r.removeTransactionLocked(debit)
		r.removeTransactionLocked(credit)
		return err
	}

	return nil
}

func (r *LedgerRepository) insertTransactionLocked(tx ledger.Transaction) error {
	if _, exists := r.byReference[tx.Reference]; exists {
		return ledger.ErrDuplicateReference
	}
	if _, exists := r.transactions[tx.ID]; exists {
		return ledger.ErrDuplicateReference
	}

	r.transactions[tx.ID] = cloneTransaction(tx)
	r.byReference[tx.Reference] = tx.ID
	return nil
}

func (r *LedgerRepository) storeTransactionLocked(tx ledger.Transaction) error {
	stored, ok := r.transactions[tx.ID]
	if !ok || stored.Version != tx.Version {
		return ledger.ErrVersionConflict
	}

	next := cloneTransaction(tx)
	next.Version++
	r.transactions[tx.ID] = next
	return nil
}

func (r *LedgerRepository) storeWalletLocked(wallet ledger.Wallet) error {
	stored, ok := r.wallets[wallet.UserID]
	if !ok || stored.Version != wallet.Version {
		return ledger.ErrVersionConflict
	}

	wallet.Version++
	r.wallets[wallet.UserID] = wallet
	return nil
}

func (r *LedgerRepository) removeTransactionLocked(tx ledger.Transaction) {
	delete(r.transactions, tx.ID)
	delete(r.byReference, tx.Reference)
}

func matchesFilter(tx ledger.Transaction, filter ledger.TransactionFilter) bool {
	if filter.UserID != "" && tx.UserID != filter.UserID {
		return false
	}
	if len(filter.Types) > 0 && !containsType(filter.Types, tx.Type) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, tx.Status) {
		return false
	}
	if !filter.Since.IsZero() && tx.CreatedAt.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && tx.CreatedAt.After(filter.Until) {
		return false
	}

	return true
}

func containsType(types []ledger.Type, t ledger.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []ledger.Status, s ledger.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneTransaction(tx ledger.Transaction) ledger.Transaction {
	copied := tx
	if tx.Metadata != nil {
		copied.Metadata = make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			copied.Metadata[k] = v
		}
	}
	copied.BalanceBefore = cloneDecimal(tx.BalanceBefore)
	copied.BalanceAfter = cloneDecimal(tx.BalanceAfter)
	copied.ProcessedAt = cloneTime(tx.ProcessedAt)
	copied.NextRetryAt = cloneTime(tx.NextRetryAt)
	copied.ReversedAt = cloneTime(tx.ReversedAt)
	return copied
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	copied := *d
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
