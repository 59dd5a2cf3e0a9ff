package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrVersionConflict signals that an optimistic update lost the race and
// the caller should re-read and retry.
var ErrVersionConflict = errors.New("stale entity version")

// TransactionFilter narrows ListTransactions. Zero-valued fields are
// ignored.
type TransactionFilter struct {
	UserID   string
	Types    []Type
	Statuses []Status
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// Repository persists wallets and transactions. The multi-entity methods
// exist because a wallet mutation and the transaction write that caused
// it must be observed together.
type Repository interface {
	GetWallet(ctx context.Context, userID string) (Wallet, bool, error)
	CreateWallet(ctx context.Context, wallet Wallet) error
	UpdateWallet(ctx context.Context, wallet Wallet) error

	GetTransaction(ctx context.Context, transactionID string) (Transaction, bool, error)
	GetTransactionByReference(ctx context.Context, reference string) (Transaction, bool, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	ListTransactionsDueForRetry(ctx context.Context, now time.Time, limit int) ([]Transaction, error)

	// CreateTransaction inserts a transaction without touching any
	// wallet. Returns ErrDuplicateReference on a reference collision.
	CreateTransaction(ctx context.Context, tx Transaction) error
	// UpdateTransaction persists a status-only transition with an
	// optimistic version check.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// CreateTransactionApplied inserts tx and writes the already-mutated
	// wallet in one atomic unit.
	CreateTransactionApplied(ctx context.Context, tx Transaction, wallet Wallet) error
	// ApplyTransition updates tx and writes the already-mutated wallet
	// in one atomic unit.
	ApplyTransition(ctx context.Context, tx Transaction, wallet Wallet) error
	// CreateTransferApplied inserts both legs of a transfer and writes
	// both mutated wallets in one atomic unit.
	CreateTransferApplied(ctx context.Context, debit, credit Transaction, from, to Wallet) error
}
