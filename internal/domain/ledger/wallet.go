package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient wallet balance")

const DefaultCurrency = "INR"

// Wallet holds a user's spendable balance and lifetime counters. It is
// mutated only as part of a transaction state transition, never directly.
type Wallet struct {
	UserID         string
	Currency       string
	Balance        decimal.Decimal
	TotalDeposited decimal.Decimal
	TotalWithdrawn decimal.Decimal
	TotalWon       decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewWallet(userID string, now time.Time) Wallet {
	return Wallet{
		UserID:    userID,
		Currency:  DefaultCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w Wallet) Validate() error {
	if w.UserID == "" {
		return fmt.Errorf("wallet user id is required")
	}
	if w.Currency == "" {
		return fmt.Errorf("wallet currency is required")
	}
	if w.Balance.IsNegative() {
		return fmt.Errorf("wallet balance must not be negative")
	}

	return nil
}

// Applied returns a copy of w with amount applied to the balance and the
// lifetime counter matching the transaction type adjusted. Negative
// amounts back the counters out again, so reversals keep the counters
// equal to the net applied movement per category.
func (w Wallet) Applied(txType Type, amount decimal.Decimal, now time.Time) (Wallet, error) {
	balance := w.Balance.Add(amount)
	if balance.IsNegative() {
		return Wallet{}, fmt.Errorf("%w: balance %s cannot absorb %s", ErrInsufficientFunds, w.Balance, amount)
	}

	next := w
	next.Balance = balance
	next.UpdatedAt = now

	switch txType {
	case TypeDeposit:
		next.TotalDeposited = w.TotalDeposited.Add(amount)
	case TypeWithdrawal:
		// Withdrawal amounts are negative, so a debit grows the counter
		// and a release shrinks it back.
		next.TotalWithdrawn = w.TotalWithdrawn.Sub(amount)
	case TypeContestWinnings:
		next.TotalWon = w.TotalWon.Add(amount)
	}

	return next, nil
}
