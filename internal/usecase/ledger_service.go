package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
	idgen "github.com/riskibarqy/fantasy-contest/internal/platform/id"
	"github.com/riskibarqy/fantasy-contest/internal/platform/metrics"
)

// PaymentGateway submits withdrawal payouts to the external money-out
// provider and reports the provider's reference for the order.
type PaymentGateway interface {
	SubmitPayout(ctx context.Context, tx ledger.Transaction) (string, error)
}

// LedgerConfig tunes the write-contention and sweep behaviour.
type LedgerConfig struct {
	// MaxWriteAttempts bounds optimistic retries when a wallet or
	// transaction write loses a version race.
	MaxWriteAttempts int
	// ReferenceAttempts bounds regeneration after a reference collision.
	ReferenceAttempts int
	// RetryWorkers bounds the retry sweep's concurrency.
	RetryWorkers int
}

type LedgerService struct {
	repo     ledger.Repository
	idGen    idgen.Generator
	gateway  PaymentGateway
	notifier notify.Notifier
	cfg      LedgerConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewLedgerService(
	repo ledger.Repository,
	idGen idgen.Generator,
	gateway PaymentGateway,
	notifier notify.Notifier,
	cfg LedgerConfig,
	logger *slog.Logger,
) *LedgerService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = 5
	}
	if cfg.ReferenceAttempts <= 0 {
		cfg.ReferenceAttempts = 3
	}
	if cfg.RetryWorkers <= 0 {
		cfg.RetryWorkers = 8
	}

	return &LedgerService{
		repo:     repo,
		idGen:    idGen,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Wallet returns the user's wallet, creating an empty one on first
// touch.
func (s *LedgerService) Wallet(ctx context.Context, userID string) (ledger.Wallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ledger.Wallet{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.walletFor(ctx, userID)
}

func (s *LedgerService) walletFor(ctx context.Context, userID string) (ledger.Wallet, error) {
	w, ok, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	if ok {
		return w, nil
	}

	w = ledger.NewWallet(userID, s.now().UTC())
	if err := s.repo.CreateWallet(ctx, w); err != nil {
		// Lost a create race; the stored row wins.
		stored, ok, getErr := s.repo.GetWallet(ctx, userID)
		if getErr == nil && ok {
			return stored, nil
		}
		return ledger.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// CreateTransactionInput is the payload for a generic pending
// transaction. Amount is signed: negative amounts debit the wallet.
type CreateTransactionInput struct {
	UserID      string
	Type        ledger.Type
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Description string
	ContestID   string
	Metadata    map[string]string
	MaxRetries  int
}

func (in CreateTransactionInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if _, ok := ledger.AllTypes[in.Type]; !ok {
		return fmt.Errorf("%w: %v", ErrInvalidInput, ledger.ErrUnknownType)
	}
	if in.Amount.IsZero() {
		return fmt.Errorf("%w: amount must not be zero", ErrInvalidInput)
	}
	if in.Fee.IsNegative() {
		return fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	return nil
}

// newTransaction builds a pending transaction with a fresh id and
// reference. Callers handle ErrDuplicateReference by calling again.
func (s *LedgerService) newTransaction(input CreateTransactionInput, now time.Time) (ledger.Transaction, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("generate transaction id: %w", err)
	}
	suffix, err := idgen.Token(ledger.ReferenceSuffixLength)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("generate reference suffix: %w", err)
	}
	reference, err := ledger.BuildReference(input.Type, now, suffix)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("build reference: %w", err)
	}

	maxRetries := input.MaxRetries
	if maxRetries <= 0 {
		maxRetries = ledger.DefaultMaxRetries
	}

	tx := ledger.Transaction{
		ID:           id,
		Reference:    reference,
		UserID:       strings.TrimSpace(input.UserID),
		Type:         input.Type,
		Status:       ledger.StatusPending,
		Amount:       input.Amount,
		Fee:          input.Fee,
		NetAmount:    input.Amount.Sub(input.Fee),
		Currency:     ledger.DefaultCurrency,
		Description:  strings.TrimSpace(input.Description),
		Metadata:     input.Metadata,
		ContestID:    strings.TrimSpace(input.ContestID),
		MaxRetries:   maxRetries,
		IsReversible: ledger.DefaultReversible(input.Type),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Validate(); err != nil {
		return ledger.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return tx, nil
}

// CreateTransaction records a pending movement without touching the
// wallet. Deposits start here and complete when the gateway confirms.
func (s *LedgerService) CreateTransaction(ctx context.Context, input CreateTransactionInput) (ledger.Transaction, error) {
	if err := input.validate(); err != nil {
		return ledger.Transaction{}, err
	}
	now := s.now().UTC()

	for attempt := 0; attempt < s.cfg.ReferenceAttempts; attempt++ {
		tx, err := s.newTransaction(input, now)
		if err != nil {
			return ledger.Transaction{}, err
		}
		err = s.repo.CreateTransaction(ctx, tx)
		if errors.Is(err, ledger.ErrDuplicateReference) {
			continue
		}
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("create transaction: %w", err)
		}
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
		return tx, nil
	}
	return ledger.Transaction{}, fmt.Errorf("create transaction: %w", ledger.ErrDuplicateReference)
}

// DepositInput starts a deposit. Amount is the positive sum the user
// pays in; Fee is the gateway's cut recorded on the transaction.
type DepositInput struct {
	UserID      string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Description string
}

// Deposit records a pending credit. The wallet stays untouched until
// the gateway confirms and Complete applies the amount.
func (s *LedgerService) Deposit(ctx context.Context, input DepositInput) (ledger.Transaction, error) {
	if !input.Amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: deposit amount must be positive", ErrInvalidInput)
	}
	description := input.Description
	if description == "" {
		description = "wallet deposit"
	}
	return s.CreateTransaction(ctx, CreateTransactionInput{
		UserID:      input.UserID,
		Type:        ledger.TypeDeposit,
		Amount:      input.Amount,
		Fee:         input.Fee,
		Description: description,
	})
}

// WithdrawInput starts a withdrawal. Amount is the positive sum leaving
// the wallet.
type WithdrawInput struct {
	UserID      string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Description string
}

// Withdraw deducts the wallet immediately and leaves the transaction
// pending toward the gateway. The hold is released if the payout later
// fails permanently or is cancelled.
func (s *LedgerService) Withdraw(ctx context.Context, input WithdrawInput) (ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.Withdraw")
	defer span.End()

	if !input.Amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidInput)
	}
	description := input.Description
	if description == "" {
		description = "wallet withdrawal"
	}
	create := CreateTransactionInput{
		UserID:      input.UserID,
		Type:        ledger.TypeWithdrawal,
		Amount:      input.Amount.Neg(),
		Fee:         input.Fee,
		Description: description,
	}
	if err := create.validate(); err != nil {
		return ledger.Transaction{}, err
	}

	now := s.now().UTC()
	var tx ledger.Transaction
	err := s.withWriteAttempts("create withdrawal", func() error {
		wallet, err := s.walletFor(ctx, create.UserID)
		if err != nil {
			return err
		}
		applied, err := wallet.Applied(ledger.TypeWithdrawal, create.Amount, now)
		if err != nil {
			metrics.InsufficientFundsTotal.Inc()
			return err
		}

		tx, err = s.newTransaction(create, now)
		if err != nil {
			return err
		}
		tx = tx.WithBalanceSnapshot(wallet.Balance, applied.Balance)
		if err := s.repo.CreateTransactionApplied(ctx, tx, applied); err != nil {
			return err
		}

		s.notifier.WalletChanged(ctx, create.UserID, applied.Balance)
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	// The payout order goes out after the hold is in place; the gateway
	// call never sits inside the wallet write.
	if s.gateway != nil {
		externalRef, err := s.gateway.SubmitPayout(ctx, tx)
		if err != nil {
			s.logger.WarnContext(ctx, "payout submission failed",
				"transaction_id", tx.ID,
				"reference", tx.Reference,
				"error", err,
			)
			return s.Fail(ctx, tx.ID, fmt.Sprintf("payout submission: %v", err))
		}
		stamped, stampErr := s.stampExternalRef(ctx, tx.ID, externalRef)
		if stampErr != nil {
			return ledger.Transaction{}, stampErr
		}
		return stamped, nil
	}
	return tx, nil
}

// TransferInput moves money between two wallets.
type TransferInput struct {
	FromUserID  string
	ToUserID    string
	Amount      decimal.Decimal
	Description string
}

// Transfer records the debit and credit legs as two linked completed
// transactions and moves both balances in one atomic write.
func (s *LedgerService) Transfer(ctx context.Context, input TransferInput) (ledger.Transaction, ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.Transfer")
	defer span.End()

	from := strings.TrimSpace(input.FromUserID)
	to := strings.TrimSpace(input.ToUserID)
	if from == "" || to == "" {
		return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("%w: both user ids are required", ErrInvalidInput)
	}
	if from == to {
		return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("%w: cannot transfer to the same wallet", ErrInvalidInput)
	}
	if !input.Amount.IsPositive() {
		return ledger.Transaction{}, ledger.Transaction{}, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidInput)
	}
	description := input.Description
	if description == "" {
		description = "wallet transfer"
	}

	now := s.now().UTC()
	var debit, credit ledger.Transaction
	err := s.withWriteAttempts("create transfer", func() error {
		fromWallet, err := s.walletFor(ctx, from)
		if err != nil {
			return err
		}
		toWallet, err := s.walletFor(ctx, to)
		if err != nil {
			return err
		}

		fromApplied, err := fromWallet.Applied(ledger.TypeTransfer, input.Amount.Neg(), now)
		if err != nil {
			metrics.InsufficientFundsTotal.Inc()
			return err
		}
		toApplied, err := toWallet.Applied(ledger.TypeTransfer, input.Amount, now)
		if err != nil {
			return err
		}

		debit, err = s.newTransaction(CreateTransactionInput{
			UserID:      from,
			Type:        ledger.TypeTransfer,
			Amount:      input.Amount.Neg(),
			Description: description,
		}, now)
		if err != nil {
			return err
		}
		credit, err = s.newTransaction(CreateTransactionInput{
			UserID:      to,
			Type:        ledger.TypeTransfer,
			Amount:      input.Amount,
			Description: description,
		}, now)
		if err != nil {
			return err
		}

		debit.CounterpartyID = to
		debit.LinkedReference = credit.Reference
		credit.CounterpartyID = from
		credit.LinkedReference = debit.Reference

		debit = s.completedAtCreation(debit, fromWallet.Balance, fromApplied.Balance, now)
		credit = s.completedAtCreation(credit, toWallet.Balance, toApplied.Balance, now)

		if err := s.repo.CreateTransferApplied(ctx, debit, credit, fromApplied, toApplied); err != nil {
			return err
		}

		s.notifier.WalletChanged(ctx, from, fromApplied.Balance)
		s.notifier.WalletChanged(ctx, to, toApplied.Balance)
		metrics.TransactionsTotal.WithLabelValues(string(ledger.TypeTransfer), string(ledger.StatusCompleted)).Add(2)
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, ledger.Transaction{}, err
	}
	return debit, credit, nil
}

// completedAtCreation marks internal movements that settle synchronously:
// completed on the spot with the balance snapshot taken around the write.
func (s *LedgerService) completedAtCreation(tx ledger.Transaction, before, after decimal.Decimal, now time.Time) ledger.Transaction {
	tx.Status = ledger.StatusCompleted
	tx.ProcessedAt = &now
	return tx.WithBalanceSnapshot(before, after)
}

// createApplied records an internal movement that is completed and
// reflected in the wallet in the same atomic write.
func (s *LedgerService) createApplied(ctx context.Context, input CreateTransactionInput) (ledger.Transaction, error) {
	if err := input.validate(); err != nil {
		return ledger.Transaction{}, err
	}
	now := s.now().UTC()

	var tx ledger.Transaction
	err := s.withWriteAttempts("create applied transaction", func() error {
		wallet, err := s.walletFor(ctx, strings.TrimSpace(input.UserID))
		if err != nil {
			return err
		}
		applied, err := wallet.Applied(input.Type, input.Amount, now)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				metrics.InsufficientFundsTotal.Inc()
			}
			return err
		}

		tx, err = s.newTransaction(input, now)
		if err != nil {
			return err
		}
		tx = s.completedAtCreation(tx, wallet.Balance, applied.Balance, now)
		if err := s.repo.CreateTransactionApplied(ctx, tx, applied); err != nil {
			return err
		}

		s.notifier.WalletChanged(ctx, tx.UserID, applied.Balance)
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

// entryMetadataKey tags contest movements with the participant entry
// that caused them, so sweeps can tell paid entries from unpaid ones.
const entryMetadataKey = "entry_id"

func entryMetadata(entryID string) map[string]string {
	if entryID == "" {
		return nil
	}
	return map[string]string{entryMetadataKey: entryID}
}

// CaptureEntryFee debits a contest entry fee synchronously. Entry fees
// are internal transfers, so they never go through the pending/retry
// lifecycle.
func (s *LedgerService) CaptureEntryFee(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: entry fee must be positive", ErrInvalidInput)
	}
	return s.createApplied(ctx, CreateTransactionInput{
		UserID:      userID,
		Type:        ledger.TypeContestEntry,
		Amount:      amount.Neg(),
		Description: "contest entry fee",
		ContestID:   contestID,
		Metadata:    entryMetadata(entryID),
	})
}

// PayWinnings credits a settled prize.
func (s *LedgerService) PayWinnings(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: winnings must be positive", ErrInvalidInput)
	}
	return s.createApplied(ctx, CreateTransactionInput{
		UserID:      userID,
		Type:        ledger.TypeContestWinnings,
		Amount:      amount,
		Description: "contest winnings",
		ContestID:   contestID,
		Metadata:    entryMetadata(entryID),
	})
}

// RefundEntry credits an entry fee back after a leave or cancellation.
func (s *LedgerService) RefundEntry(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal, reason string) (ledger.Transaction, error) {
	if !amount.IsPositive() {
		return ledger.Transaction{}, fmt.Errorf("%w: refund amount must be positive", ErrInvalidInput)
	}
	description := reason
	if description == "" {
		description = "contest entry refund"
	}
	return s.createApplied(ctx, CreateTransactionInput{
		UserID:      userID,
		Type:        ledger.TypeRefund,
		Amount:      amount,
		Description: description,
		ContestID:   contestID,
		Metadata:    entryMetadata(entryID),
	})
}

// MovementForEntry finds the completed movement of the given type
// already recorded for one contest entry. Settlement and cancellation
// sweeps use it to stay idempotent across crashes: an entry with a
// recorded movement is never paid twice.
func (s *LedgerService) MovementForEntry(ctx context.Context, txType ledger.Type, userID, contestID, entryID string) (ledger.Transaction, bool, error) {
	items, err := s.repo.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:   userID,
		Types:    []ledger.Type{txType},
		Statuses: []ledger.Status{ledger.StatusCompleted},
	})
	if err != nil {
		return ledger.Transaction{}, false, fmt.Errorf("list transactions: %w", err)
	}
	for _, tx := range items {
		if tx.ContestID != contestID {
			continue
		}
		if tx.Metadata[entryMetadataKey] == entryID {
			return tx, true, nil
		}
	}
	return ledger.Transaction{}, false, nil
}

// GrantInput credits or debits a wallet outside the contest flow:
// bonuses, referral rewards, and admin adjustments.
type GrantInput struct {
	UserID      string
	Type        ledger.Type
	Amount      decimal.Decimal
	Description string
	Metadata    map[string]string
}

func (s *LedgerService) Grant(ctx context.Context, input GrantInput) (ledger.Transaction, error) {
	switch input.Type {
	case ledger.TypeBonus, ledger.TypeReferralBonus:
		if !input.Amount.IsPositive() {
			return ledger.Transaction{}, fmt.Errorf("%w: %s amount must be positive", ErrInvalidInput, input.Type)
		}
	case ledger.TypeAdminAdjustment:
		// Adjustments go both ways.
	default:
		return ledger.Transaction{}, fmt.Errorf("%w: %s is not a grant type", ErrInvalidInput, input.Type)
	}

	return s.createApplied(ctx, CreateTransactionInput{
		UserID:      input.UserID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		Metadata:    input.Metadata,
	})
}

// Complete finalizes a pending transaction: the wallet absorbs the
// amount and the balance snapshot is taken, both in one atomic write.
// Held debits only flip status, their wallet effect already happened.
func (s *LedgerService) Complete(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.Complete")
	defer span.End()

	var result ledger.Transaction
	err := s.withWriteAttempts("complete transaction", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		completed, err := tx.Completed(s.now().UTC())
		if err != nil {
			return err
		}

		if tx.BalanceApplied {
			if err := s.repo.UpdateTransaction(ctx, completed); err != nil {
				return err
			}
			result = completed
			metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(completed.Status)).Inc()
			return nil
		}

		wallet, err := s.walletFor(ctx, tx.UserID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		applied, err := wallet.Applied(tx.Type, tx.Amount, now)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				metrics.InsufficientFundsTotal.Inc()
			}
			return err
		}
		completed = completed.WithBalanceSnapshot(wallet.Balance, applied.Balance)
		if err := s.repo.ApplyTransition(ctx, completed, applied); err != nil {
			return err
		}

		s.notifier.WalletChanged(ctx, tx.UserID, applied.Balance)
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(completed.Status)).Inc()
		result = completed
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// Fail records a failure and schedules the next retry. A permanently
// failed held debit releases its hold back to the wallet.
func (s *LedgerService) Fail(ctx context.Context, transactionID, reason string) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := s.withWriteAttempts("fail transaction", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		failed, err := tx.Failed(reason, now)
		if err != nil {
			return err
		}

		if failed.IsTerminal() && failed.BalanceApplied {
			released, err := s.releaseHold(ctx, failed, now)
			if err != nil {
				return err
			}
			result = released
		} else {
			if err := s.repo.UpdateTransaction(ctx, failed); err != nil {
				return err
			}
			result = failed
		}
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(ledger.StatusFailed)).Inc()
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// releaseHold credits a held debit back to the wallet together with the
// terminal status write.
func (s *LedgerService) releaseHold(ctx context.Context, tx ledger.Transaction, now time.Time) (ledger.Transaction, error) {
	wallet, err := s.walletFor(ctx, tx.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	released, err := wallet.Applied(tx.Type, tx.Amount.Neg(), now)
	if err != nil {
		return ledger.Transaction{}, err
	}
	next := tx.WithBalanceReleased()
	if err := s.repo.ApplyTransition(ctx, next, released); err != nil {
		return ledger.Transaction{}, err
	}

	s.notifier.WalletChanged(ctx, tx.UserID, released.Balance)
	return next, nil
}

// Retry resets a failed transaction to pending while attempts remain.
func (s *LedgerService) Retry(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := s.withWriteAttempts("retry transaction", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		retried, err := tx.Retried(s.now().UTC())
		if err != nil {
			return err
		}
		if err := s.repo.UpdateTransaction(ctx, retried); err != nil {
			return err
		}
		result = retried
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(retried.Status)).Inc()
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// Reverse undoes a completed, reversible transaction by applying the
// inverse amount to the wallet.
func (s *LedgerService) Reverse(ctx context.Context, transactionID, reason, actor string) (ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.Reverse")
	defer span.End()

	if strings.TrimSpace(actor) == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: reversal actor is required", ErrInvalidInput)
	}

	var result ledger.Transaction
	err := s.withWriteAttempts("reverse transaction", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		reversed, err := tx.Reversed(reason, actor, now)
		if err != nil {
			return err
		}

		wallet, err := s.walletFor(ctx, tx.UserID)
		if err != nil {
			return err
		}
		applied, err := wallet.Applied(tx.Type, tx.Amount.Neg(), now)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				metrics.InsufficientFundsTotal.Inc()
			}
			return err
		}
		// The original completion snapshot stays as written.
		reversed = reversed.WithBalanceReleased()
		if err := s.repo.ApplyTransition(ctx, reversed, applied); err != nil {
			return err
		}

		s.notifier.WalletChanged(ctx, tx.UserID, applied.Balance)
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(reversed.Status)).Inc()
		result = reversed
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// Cancel terminates a transaction that never completed, releasing any
// hold it placed.
func (s *LedgerService) Cancel(ctx context.Context, transactionID, reason string) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := s.withWriteAttempts("cancel transaction", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		cancelled, err := tx.Cancelled(reason, now)
		if err != nil {
			return err
		}

		if cancelled.BalanceApplied {
			released, err := s.releaseHold(ctx, cancelled, now)
			if err != nil {
				return err
			}
			result = released
		} else {
			if err := s.repo.UpdateTransaction(ctx, cancelled); err != nil {
				return err
			}
			result = cancelled
		}
		metrics.TransactionsTotal.WithLabelValues(string(tx.Type), string(ledger.StatusCancelled)).Inc()
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// GatewayOutcomeInput is the success/failure signal relayed by the
// payment gateway webhook.
type GatewayOutcomeInput struct {
	Reference   string
	Success     bool
	ExternalRef string
	Reason      string
}

// ConfirmGatewayOutcome resolves a pending gateway transaction.
// Redelivered webhooks for an already-settled outcome are a no-op.
func (s *LedgerService) ConfirmGatewayOutcome(ctx context.Context, input GatewayOutcomeInput) (ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.ConfirmGatewayOutcome")
	defer span.End()

	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: reference is required", ErrInvalidInput)
	}

	tx, ok, err := s.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("get transaction by reference: %w", err)
	}
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, reference)
	}

	// Redelivery of an outcome that already landed.
	if input.Success && tx.Status == ledger.StatusCompleted {
		return tx, nil
	}
	if !input.Success && tx.Status == ledger.StatusFailed {
		return tx, nil
	}

	if input.ExternalRef != "" && tx.ExternalRef == "" {
		stamped, err := s.stampExternalRef(ctx, tx.ID, input.ExternalRef)
		if err != nil {
			return ledger.Transaction{}, err
		}
		tx = stamped
	}

	if input.Success {
		return s.Complete(ctx, tx.ID)
	}
	reason := input.Reason
	if reason == "" {
		reason = "payment gateway reported failure"
	}
	return s.Fail(ctx, tx.ID, reason)
}

// stampExternalRef persists the gateway-assigned order reference.
func (s *LedgerService) stampExternalRef(ctx context.Context, transactionID, externalRef string) (ledger.Transaction, error) {
	var result ledger.Transaction
	err := s.withWriteAttempts("stamp external reference", func() error {
		tx, err := s.transaction(ctx, transactionID)
		if err != nil {
			return err
		}
		tx.ExternalRef = externalRef
		tx.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return result, nil
}

// GetTransaction returns one of the user's transactions. Other users'
// transactions read as missing.
func (s *LedgerService) GetTransaction(ctx context.Context, userID, transactionID string) (ledger.Transaction, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(transactionID) == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: user id and transaction id are required", ErrInvalidInput)
	}
	tx, ok, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if !ok || tx.UserID != userID {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
	}
	return tx, nil
}

// GetTransactionByReference resolves one of the user's transactions by
// its ledger reference.
func (s *LedgerService) GetTransactionByReference(ctx context.Context, userID, reference string) (ledger.Transaction, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(reference) == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: user id and reference are required", ErrInvalidInput)
	}
	tx, ok, err := s.repo.GetTransactionByReference(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("get transaction by reference: %w", err)
	}
	if !ok || tx.UserID != userID {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, reference)
	}
	return tx, nil
}

// ListTransactionsInput filters a user's transaction history.
type ListTransactionsInput struct {
	UserID   string
	Types    []ledger.Type
	Statuses []ledger.Status
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

func (s *LedgerService) ListTransactions(ctx context.Context, input ListTransactionsInput) ([]ledger.Transaction, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	items, err := s.repo.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:   userID,
		Types:    input.Types,
		Statuses: input.Statuses,
		Since:    input.Since,
		Until:    input.Until,
		Limit:    limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

// RetrySweepResult summarizes one pass of the retry sweep.
type RetrySweepResult struct {
	Scanned     int `json:"scanned"`
	Retried     int `json:"retried"`
	Resubmitted int `json:"resubmitted"`
	Failed      int `json:"failed"`
}

// ProcessDueRetries re-activates failed transactions whose backoff has
// elapsed and resubmits withdrawal payouts to the gateway. Items are
// worked concurrently but each one's wallet writes stay serialized by
// the version checks.
func (s *LedgerService) ProcessDueRetries(ctx context.Context, limit int) (RetrySweepResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LedgerService.ProcessDueRetries")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	now := s.now().UTC()
	due, err := s.repo.ListTransactionsDueForRetry(ctx, now, limit)
	if err != nil {
		return RetrySweepResult{}, fmt.Errorf("list due retries: %w", err)
	}
	if len(due) == 0 {
		return RetrySweepResult{}, nil
	}

	var retried, resubmitted, failed atomic.Int32
	workers := pool.New().WithMaxGoroutines(s.cfg.RetryWorkers)
	for _, tx := range due {
		tx := tx
		workers.Go(func() {
			outcome, err := s.retryOne(ctx, tx)
			if err != nil {
				failed.Add(1)
				metrics.RetrySweepTotal.WithLabelValues("error").Inc()
				s.logger.ErrorContext(ctx, "retry sweep item failed",
					"transaction_id", tx.ID,
					"reference", tx.Reference,
					"error", err,
				)
				return
			}
			retried.Add(1)
			metrics.RetrySweepTotal.WithLabelValues("retried").Inc()
			if outcome == retryOutcomeResubmitted {
				resubmitted.Add(1)
			}
		})
	}
	workers.Wait()

	result := RetrySweepResult{
		Scanned:     len(due),
		Retried:     int(retried.Load()),
		Resubmitted: int(resubmitted.Load()),
		Failed:      int(failed.Load()),
	}
	s.logger.InfoContext(ctx, "retry sweep finished",
		"scanned", result.Scanned,
		"retried", result.Retried,
		"resubmitted", result.Resubmitted,
		"failed", result.Failed,
	)
	return result, nil
}

type retryOutcome int

const (
	retryOutcomePending retryOutcome = iota
	retryOutcomeResubmitted
)

func (s *LedgerService) retryOne(ctx context.Context, tx ledger.Transaction) (retryOutcome, error) {
	retriedTx, err := s.Retry(ctx, tx.ID)
	if err != nil {
		return retryOutcomePending, err
	}

	if retriedTx.Type != ledger.TypeWithdrawal || s.gateway == nil {
		return retryOutcomePending, nil
	}
	externalRef, err := s.gateway.SubmitPayout(ctx, retriedTx)
	if err != nil {
		// The failure is recorded against the transaction; the sweep
		// itself carried the item successfully.
		if _, failErr := s.Fail(ctx, retriedTx.ID, fmt.Sprintf("payout resubmission: %v", err)); failErr != nil {
			return retryOutcomePending, failErr
		}
		return retryOutcomePending, nil
	}
	if _, err := s.stampExternalRef(ctx, retriedTx.ID, externalRef); err != nil {
		return retryOutcomePending, err
	}
	return retryOutcomeResubmitted, nil
}

func (s *LedgerService) transaction(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	tx, ok, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
	}
	return tx, nil
}

// withWriteAttempts runs fn until it sticks, retrying version conflicts
// and reference collisions up to the configured bound.
func (s *LedgerService) withWriteAttempts(op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxWriteAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrVersionConflict) || errors.Is(err, ledger.ErrDuplicateReference) {
			lastErr = err
			continue
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}
