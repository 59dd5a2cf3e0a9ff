package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidState       = errors.New("transition not allowed from current transaction status")
	ErrRetryExhausted     = errors.New("transaction retries exhausted")
	ErrNotReversible      = errors.New("transaction is not reversible")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrUnknownType        = errors.New("unknown transaction type")
)

type Type string

const (
	TypeDeposit         Type = "deposit"
	TypeWithdrawal      Type = "withdrawal"
	TypeContestEntry    Type = "contest_entry"
	TypeContestWinnings Type = "contest_winnings"
	TypeBonus           Type = "bonus"
	TypeRefund          Type = "refund"
	TypeReferralBonus   Type = "referral_bonus"
	TypeAdminAdjustment Type = "admin_adjustment"
	TypeTransfer        Type = "transfer"
)

var AllTypes = map[Type]struct{}{
	TypeDeposit:         {},
	TypeWithdrawal:      {},
	TypeContestEntry:    {},
	TypeContestWinnings: {},
	TypeBonus:           {},
	TypeRefund:          {},
	TypeReferralBonus:   {},
	TypeAdminAdjustment: {},
	TypeTransfer:        {},
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

const DefaultMaxRetries = 3

// Transaction is one movement of money against a single wallet. The
// record itself is append-only: transitions update status and the
// bookkeeping fields, never the identity or the amount.
type Transaction struct {
	ID              string
	Reference       string
	UserID          string
	Type            Type
	Status          Status
	Amount          decimal.Decimal // signed, negative for debits
	Fee             decimal.Decimal
	NetAmount       decimal.Decimal
	Currency        string
	Description     string
	Metadata        map[string]string
	ContestID       string
	CounterpartyID  string
	LinkedReference string
	ExternalRef     string

	// BalanceApplied reports whether this transaction's amount is
	// currently reflected in the wallet balance. Credits apply at
	// completion; withdrawal debits apply at creation and are released
	// again when the transaction fails permanently or is cancelled.
	BalanceApplied bool
	BalanceBefore  *decimal.Decimal
	BalanceAfter   *decimal.Decimal

	FailureReason string
	RetryCount    int
	MaxRetries    int
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time

	IsReversible   bool
	ReversedAt     *time.Time
	ReversedBy     string
	ReversalReason string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if t.Reference == "" {
		return fmt.Errorf("transaction reference is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("transaction user id is required")
	}
	if _, ok := AllTypes[t.Type]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, t.Type)
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("transaction amount must not be zero")
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("transaction fee must not be negative")
	}

	return nil
}

func (t Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsTerminal reports whether no further transition is permitted.
func (t Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	case StatusFailed:
		return t.RetryCount >= t.MaxRetries
	}
	return false
}

// Completed marks a pending transaction completed. The balance snapshot
// is recorded separately by WithBalanceSnapshot at the moment the wallet
// mutation is applied.
func (t Transaction) Completed(now time.Time) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, fmt.Errorf("%w: complete requires pending, found %s", ErrInvalidState, t.Status)
	}

	next := t
	next.Status = StatusCompleted
	next.ProcessedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Failed records a failure on a pending transaction. While retries
// remain the next attempt is scheduled 2^retryCount seconds out; once
// they are exhausted the transaction is permanently failed and left for
// an operator.
func (t Transaction) Failed(reason string, now time.Time) (Transaction, error) {
	if t.Status != StatusPending {
		return Transaction{}, fmt.Errorf("%w: fail requires pending, found %s", ErrInvalidState, t.Status)
	}

	next := t
	next.Status = StatusFailed
	next.FailureReason = reason
	next.RetryCount = t.RetryCount + 1
	next.NextRetryAt = nil
	next.UpdatedAt = now
	if next.RetryCount < next.MaxRetries {
		at := now.Add(time.Duration(1<<next.RetryCount) * time.Second)
		next.NextRetryAt = &at
	}
	return next, nil
}

// Retried resets a failed transaction to pending for another attempt.
func (t Transaction) Retried(now time.Time) (Transaction, error) {
	if t.Status != StatusFailed {
		return Transaction{}, fmt.Errorf("%w: retry requires failed, found %s", ErrInvalidState, t.Status)
	}
	if t.RetryCount >= t.MaxRetries {
		return Transaction{}, fmt.Errorf("%w: %d of %d attempts used", ErrRetryExhausted, t.RetryCount, t.MaxRetries)
	}

	next := t
	next.Status = StatusPending
	next.FailureReason = ""
	next.NextRetryAt = nil
	next.UpdatedAt = now
	return next, nil
}

// Reversed marks a completed, reversible transaction refunded.
func (t Transaction) Reversed(reason, actor string, now time.Time) (Transaction, error) {
	if t.ReversedAt != nil {
		return Transaction{}, fmt.Errorf("%w: already reversed at %s", ErrInvalidState, t.ReversedAt.Format(time.RFC3339))
	}
	if t.Status != StatusCompleted {
		return Transaction{}, fmt.Errorf("%w: reverse requires completed, found %s", ErrInvalidState, t.Status)
	}
	if !t.IsReversible {
		return Transaction{}, fmt.Errorf("%w: %s transactions of reference %s", ErrNotReversible, t.Type, t.Reference)
	}

	next := t
	next.Status = StatusRefunded
	next.ReversedAt = &now
	next.ReversedBy = actor
	next.ReversalReason = reason
	next.UpdatedAt = now
	return next, nil
}

// Cancelled terminates a transaction that never completed.
func (t Transaction) Cancelled(reason string, now time.Time) (Transaction, error) {
	if t.Status != StatusPending && t.Status != StatusFailed {
		return Transaction{}, fmt.Errorf("%w: cancel requires pending or failed, found %s", ErrInvalidState, t.Status)
	}

	next := t
	next.Status = StatusCancelled
	next.FailureReason = reason
	next.NextRetryAt = nil
	next.UpdatedAt = now
	return next, nil
}

// WithBalanceSnapshot records the wallet balance around the moment this
// transaction's amount was applied. Snapshots are written once and never
// recomputed.
func (t Transaction) WithBalanceSnapshot(before, after decimal.Decimal) Transaction {
	next := t
	next.BalanceApplied = true
	next.BalanceBefore = &before
	next.BalanceAfter = &after
	return next
}

// WithBalanceReleased clears the applied flag after the wallet effect of
// a held debit has been credited back.
func (t Transaction) WithBalanceReleased() Transaction {
	next := t
	next.BalanceApplied = false
	return next
}

// DefaultReversible reports whether transactions of this type may be
// reversed after completion unless the caller overrides it. Money that
// already left the platform (withdrawals, refunds) cannot be pulled back
// by the ledger alone.
func DefaultReversible(txType Type) bool {
	switch txType {
	case TypeWithdrawal, TypeRefund:
		return false
	default:
		return true
	}
}
