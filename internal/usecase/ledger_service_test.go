package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
)

var ledgerTestNow = time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)

type seqIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *seqIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	return fmt.Sprintf("%s-%03d", g.prefix, g.next), nil
}

type stubPayoutGateway struct {
	mu        sync.Mutex
	err       error
	submitted []ledger.Transaction
}

func (g *stubPayoutGateway) SubmitPayout(_ context.Context, tx ledger.Transaction) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.submitted = append(g.submitted, tx)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("order-%03d", len(g.submitted)), nil
}

func (g *stubPayoutGateway) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func newTestLedgerService(gateway PaymentGateway) *LedgerService {
	service := NewLedgerService(
		memory.NewLedgerRepository(),
		&seqIDGenerator{prefix: "tx"},
		gateway,
		notify.Nop{},
		LedgerConfig{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	service.now = func() time.Time { return ledgerTestNow }
	return service
}

func TestLedgerService_DepositLifecycle(t *testing.T) {
	service := newTestLedgerService(nil)

	pending, err := service.Deposit(t.Context(), DepositInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if pending.Status != ledger.StatusPending {
		t.Fatalf("expected pending deposit, got %s", pending.Status)
	}
	if pending.BalanceApplied {
		t.Fatalf("pending deposit must not touch the wallet")
	}

	before, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !before.Balance.IsZero() {
		t.Fatalf("expected zero balance before confirmation, got %s", before.Balance)
	}

	completed, err := service.ConfirmGatewayOutcome(t.Context(), GatewayOutcomeInput{
		Reference:   pending.Reference,
		Success:     true,
		ExternalRef: "pg-abc-123",
	})
	if err != nil {
		t.Fatalf("confirm gateway outcome failed: %v", err)
	}
	if completed.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.ExternalRef != "pg-abc-123" {
		t.Fatalf("expected external ref stamped, got %q", completed.ExternalRef)
	}
	if completed.BalanceBefore == nil || completed.BalanceAfter == nil {
		t.Fatalf("expected balance snapshot on completion")
	}
	if !completed.BalanceBefore.IsZero() || !completed.BalanceAfter.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected snapshot 0 -> 500, got %s -> %s", completed.BalanceBefore, completed.BalanceAfter)
	}
	if diff := completed.BalanceAfter.Sub(*completed.BalanceBefore); !diff.Equal(completed.Amount) {
		t.Fatalf("snapshot delta %s does not match amount %s", diff, completed.Amount)
	}

	after, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !after.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance 500, got %s", after.Balance)
	}
	if !after.TotalDeposited.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected total deposited 500, got %s", after.TotalDeposited)
	}
}

func TestLedgerService_ConfirmGatewayOutcome_Redelivery(t *testing.T) {
	service := newTestLedgerService(nil)

	pending, err := service.Deposit(t.Context(), DepositInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	outcome := GatewayOutcomeInput{Reference: pending.Reference, Success: true}
	if _, err := service.ConfirmGatewayOutcome(t.Context(), outcome); err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	replayed, err := service.ConfirmGatewayOutcome(t.Context(), outcome)
	if err != nil {
		t.Fatalf("redelivered confirmation failed: %v", err)
	}
	if replayed.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed on redelivery, got %s", replayed.Status)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("redelivery must not double-credit, balance %s", wallet.Balance)
	}

	if _, err := service.ConfirmGatewayOutcome(t.Context(), GatewayOutcomeInput{
		Reference: "DEPUNKNOWN",
		Success:   true,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown reference, got %v", err)
	}
}

func fundWallet(t *testing.T, service *LedgerService, userID string, amount int64) {
	t.Helper()

	pending, err := service.Deposit(t.Context(), DepositInput{
		UserID: userID,
		Amount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("seed deposit failed: %v", err)
	}
	if _, err := service.ConfirmGatewayOutcome(t.Context(), GatewayOutcomeInput{
		Reference: pending.Reference,
		Success:   true,
	}); err != nil {
		t.Fatalf("seed deposit confirmation failed: %v", err)
	}
}

func TestLedgerService_WithdrawHoldsImmediately(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending withdrawal, got %s", tx.Status)
	}
	if !tx.BalanceApplied {
		t.Fatalf("expected withdrawal hold to be applied")
	}
	if !tx.Amount.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected amount -200, got %s", tx.Amount)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected balance 300 after hold, got %s", wallet.Balance)
	}
	if !wallet.TotalWithdrawn.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total withdrawn 200, got %s", wallet.TotalWithdrawn)
	}
}

func TestLedgerService_WithdrawInsufficientFunds(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 100)

	_, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The rejected withdrawal leaves no transaction behind.
	items, err := service.ListTransactions(t.Context(), ListTransactionsInput{
		UserID: "user-1",
		Types:  []ledger.Type{ledger.TypeWithdrawal},
	})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no withdrawal transactions, got %d", len(items))
	}
}

func TestLedgerService_FailReleasesHoldOnlyWhenExhausted(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	for attempt := 1; attempt < ledger.DefaultMaxRetries; attempt++ {
		failed, err := service.Fail(t.Context(), tx.ID, "gateway timeout")
		if err != nil {
			t.Fatalf("fail attempt %d errored: %v", attempt, err)
		}
		if failed.IsTerminal() {
			t.Fatalf("attempt %d must not be terminal", attempt)
		}
		if !failed.BalanceApplied {
			t.Fatalf("retryable failure must keep the hold")
		}

		wallet, err := service.Wallet(t.Context(), "user-1")
		if err != nil {
			t.Fatalf("wallet failed: %v", err)
		}
		if !wallet.Balance.Equal(decimal.NewFromInt(300)) {
			t.Fatalf("hold must survive retryable failure, balance %s", wallet.Balance)
		}

		if _, err := service.Retry(t.Context(), tx.ID); err != nil {
			t.Fatalf("retry attempt %d errored: %v", attempt, err)
		}
	}

	terminal, err := service.Fail(t.Context(), tx.ID, "bank rejected")
	if err != nil {
		t.Fatalf("terminal fail errored: %v", err)
	}
	if !terminal.IsTerminal() {
		t.Fatalf("expected terminal failure after %d attempts", ledger.DefaultMaxRetries)
	}
	if terminal.BalanceApplied {
		t.Fatalf("terminal failure must release the hold")
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected hold released back to 500, got %s", wallet.Balance)
	}
	if !wallet.TotalWithdrawn.IsZero() {
		t.Fatalf("expected withdrawn counter back to zero, got %s", wallet.TotalWithdrawn)
	}

	if _, err := service.Retry(t.Context(), tx.ID); !errors.Is(err, ledger.ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
}

func TestLedgerService_WithdrawSubmitsPayout(t *testing.T) {
	gateway := &stubPayoutGateway{}
	service := newTestLedgerService(gateway)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if tx.ExternalRef != "order-001" {
		t.Fatalf("expected gateway order stamped, got %q", tx.ExternalRef)
	}
	if len(gateway.submitted) != 1 {
		t.Fatalf("expected one payout submission, got %d", len(gateway.submitted))
	}
	if gateway.submitted[0].Status != ledger.StatusPending {
		t.Fatalf("payout must be submitted for the pending hold, got %s", gateway.submitted[0].Status)
	}
}

func TestLedgerService_WithdrawGatewayRejection(t *testing.T) {
	gateway := &stubPayoutGateway{err: errors.New("connection refused")}
	service := newTestLedgerService(gateway)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw with failing gateway errored: %v", err)
	}
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected failed withdrawal, got %s", tx.Status)
	}
	if tx.NextRetryAt == nil {
		t.Fatalf("expected a retry scheduled")
	}
	if !tx.BalanceApplied {
		t.Fatalf("retryable gateway failure must keep the hold")
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected hold kept at 300, got %s", wallet.Balance)
	}
}

func TestLedgerService_ProcessDueRetriesResubmitsPayouts(t *testing.T) {
	gateway := &stubPayoutGateway{err: errors.New("connection refused")}
	service := newTestLedgerService(gateway)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	// Before the backoff elapses the sweep sees nothing.
	result, err := service.ProcessDueRetries(t.Context(), 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("expected nothing due yet, scanned %d", result.Scanned)
	}

	gateway.setErr(nil)
	service.now = func() time.Time { return ledgerTestNow.Add(time.Minute) }

	result, err = service.ProcessDueRetries(t.Context(), 10)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if result.Scanned != 1 || result.Retried != 1 || result.Resubmitted != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}

	resubmitted, err := service.GetTransaction(t.Context(), "user-1", tx.ID)
	if err != nil {
		t.Fatalf("get transaction failed: %v", err)
	}
	if resubmitted.Status != ledger.StatusPending {
		t.Fatalf("expected pending after resubmission, got %s", resubmitted.Status)
	}
	if resubmitted.ExternalRef == "" {
		t.Fatalf("expected gateway order stamped on resubmission")
	}

	completed, err := service.ConfirmGatewayOutcome(t.Context(), GatewayOutcomeInput{
		Reference: resubmitted.Reference,
		Success:   true,
	})
	if err != nil {
		t.Fatalf("confirm after resubmission failed: %v", err)
	}
	if completed.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed withdrawal, got %s", completed.Status)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("completed withdrawal keeps the debit, balance %s", wallet.Balance)
	}
	if !wallet.TotalWithdrawn.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected total withdrawn 200, got %s", wallet.TotalWithdrawn)
	}
}

func TestLedgerService_CancelReleasesHold(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	cancelled, err := service.Cancel(t.Context(), tx.ID, "user request")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != ledger.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.BalanceApplied {
		t.Fatalf("cancellation must release the hold")
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance restored to 500, got %s", wallet.Balance)
	}
}

func TestLedgerService_EntryFeeAndRefund(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	fee, err := service.CaptureEntryFee(t.Context(), "user-1", "contest-1", "entry-1", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("capture entry fee failed: %v", err)
	}
	if fee.Status != ledger.StatusCompleted {
		t.Fatalf("entry fees settle synchronously, got %s", fee.Status)
	}
	if fee.ContestID != "contest-1" {
		t.Fatalf("expected contest id on the fee, got %q", fee.ContestID)
	}
	if !fee.Amount.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("expected amount -100, got %s", fee.Amount)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected balance 400 after fee, got %s", wallet.Balance)
	}

	refund, err := service.RefundEntry(t.Context(), "user-1", "contest-1", "entry-1", decimal.NewFromInt(100), "contest cancelled")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refund.Status != ledger.StatusCompleted {
		t.Fatalf("refunds settle synchronously, got %s", refund.Status)
	}

	found, ok, err := service.MovementForEntry(t.Context(), ledger.TypeRefund, "user-1", "contest-1", "entry-1")
	if err != nil {
		t.Fatalf("movement lookup failed: %v", err)
	}
	if !ok || found.Reference != refund.Reference {
		t.Fatalf("expected refund found by entry, got ok=%v ref=%q", ok, found.Reference)
	}
	if _, ok, _ := service.MovementForEntry(t.Context(), ledger.TypeRefund, "user-1", "contest-1", "entry-2"); ok {
		t.Fatalf("expected no refund for a different entry")
	}

	wallet, err = service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected balance restored to 500, got %s", wallet.Balance)
	}
}

func TestLedgerService_EntryFeeInsufficientFunds(t *testing.T) {
	service := newTestLedgerService(nil)

	_, err := service.CaptureEntryFee(t.Context(), "user-1", "contest-1", "entry-1", decimal.NewFromInt(100))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestLedgerService_TransferMovesAndLinksBothLegs(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "alice", 500)

	debit, credit, err := service.Transfer(t.Context(), TransferInput{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if debit.Status != ledger.StatusCompleted || credit.Status != ledger.StatusCompleted {
		t.Fatalf("expected both legs completed, got %s and %s", debit.Status, credit.Status)
	}
	if !debit.Amount.Equal(decimal.NewFromInt(-200)) || !credit.Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected legs -200/+200, got %s/%s", debit.Amount, credit.Amount)
	}
	if debit.LinkedReference != credit.Reference || credit.LinkedReference != debit.Reference {
		t.Fatalf("expected legs linked by reference")
	}
	if debit.CounterpartyID != "bob" || credit.CounterpartyID != "alice" {
		t.Fatalf("expected counterparties recorded, got %q and %q", debit.CounterpartyID, credit.CounterpartyID)
	}

	aliceWallet, err := service.Wallet(t.Context(), "alice")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	bobWallet, err := service.Wallet(t.Context(), "bob")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !aliceWallet.Balance.Equal(decimal.NewFromInt(300)) || !bobWallet.Balance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected balances 300/200, got %s/%s", aliceWallet.Balance, bobWallet.Balance)
	}
	if !aliceWallet.Balance.Add(bobWallet.Balance).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("transfer must conserve total balance")
	}
}

func TestLedgerService_TransferValidation(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "alice", 100)

	if _, _, err := service.Transfer(t.Context(), TransferInput{
		FromUserID: "alice",
		ToUserID:   "alice",
		Amount:     decimal.NewFromInt(50),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self transfer, got %v", err)
	}

	if _, _, err := service.Transfer(t.Context(), TransferInput{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     decimal.NewFromInt(200),
	}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestLedgerService_ReverseDeposit(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	items, err := service.ListTransactions(t.Context(), ListTransactionsInput{
		UserID: "user-1",
		Types:  []ledger.Type{ledger.TypeDeposit},
	})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one deposit, got %d", len(items))
	}
	deposit := items[0]

	reversed, err := service.Reverse(t.Context(), deposit.ID, "chargeback", "ops-admin")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if reversed.Status != ledger.StatusRefunded {
		t.Fatalf("expected refunded, got %s", reversed.Status)
	}
	if reversed.ReversedBy != "ops-admin" || reversed.ReversedAt == nil {
		t.Fatalf("expected reversal audit fields recorded")
	}
	// The completion snapshot survives the reversal untouched.
	if reversed.BalanceAfter == nil || !reversed.BalanceAfter.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("reversal must not rewrite the completion snapshot")
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.IsZero() {
		t.Fatalf("expected balance back to zero, got %s", wallet.Balance)
	}
	if !wallet.TotalDeposited.IsZero() {
		t.Fatalf("expected deposit counter backed out, got %s", wallet.TotalDeposited)
	}

	if _, err := service.Reverse(t.Context(), deposit.ID, "again", "ops-admin"); !errors.Is(err, ledger.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double reversal, got %v", err)
	}
}

func TestLedgerService_ReverseRejectsWithdrawals(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	tx, err := service.Withdraw(t.Context(), WithdrawInput{
		UserID: "user-1",
		Amount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if _, err := service.Complete(t.Context(), tx.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := service.Reverse(t.Context(), tx.ID, "oops", "ops-admin"); !errors.Is(err, ledger.ErrNotReversible) {
		t.Fatalf("expected ErrNotReversible, got %v", err)
	}
}

func TestLedgerService_GrantValidation(t *testing.T) {
	service := newTestLedgerService(nil)

	bonus, err := service.Grant(t.Context(), GrantInput{
		UserID:      "user-1",
		Type:        ledger.TypeBonus,
		Amount:      decimal.NewFromInt(50),
		Description: "signup bonus",
	})
	if err != nil {
		t.Fatalf("grant bonus failed: %v", err)
	}
	if bonus.Status != ledger.StatusCompleted {
		t.Fatalf("grants settle synchronously, got %s", bonus.Status)
	}

	if _, err := service.Grant(t.Context(), GrantInput{
		UserID: "user-1",
		Type:   ledger.TypeBonus,
		Amount: decimal.NewFromInt(-50),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative bonus, got %v", err)
	}

	if _, err := service.Grant(t.Context(), GrantInput{
		UserID: "user-1",
		Type:   ledger.TypeDeposit,
		Amount: decimal.NewFromInt(50),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-grant type, got %v", err)
	}

	// Negative adjustments are allowed while funds cover them.
	adjusted, err := service.Grant(t.Context(), GrantInput{
		UserID:      "user-1",
		Type:        ledger.TypeAdminAdjustment,
		Amount:      decimal.NewFromInt(-20),
		Description: "promo clawback",
	})
	if err != nil {
		t.Fatalf("negative adjustment failed: %v", err)
	}
	if !adjusted.Amount.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("expected amount -20, got %s", adjusted.Amount)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected balance 30, got %s", wallet.Balance)
	}
}

func TestLedgerService_GetTransactionScopedToOwner(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "user-1", 500)

	items, err := service.ListTransactions(t.Context(), ListTransactionsInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one transaction, got %d", len(items))
	}

	if _, err := service.GetTransaction(t.Context(), "user-2", items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign transaction, got %v", err)
	}
	if _, err := service.GetTransactionByReference(t.Context(), "user-2", items[0].Reference); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign reference, got %v", err)
	}

	own, err := service.GetTransaction(t.Context(), "user-1", items[0].ID)
	if err != nil {
		t.Fatalf("get own transaction failed: %v", err)
	}
	if own.ID != items[0].ID {
		t.Fatalf("expected transaction %s, got %s", items[0].ID, own.ID)
	}
}

func TestLedgerService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := memory.NewLedgerRepository()
	service := NewLedgerService(
		repo,
		&seqIDGenerator{prefix: "tx"},
		nil,
		notify.Nop{},
		LedgerConfig{MaxWriteAttempts: 100},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	service.now = func() time.Time { return ledgerTestNow }
	fundWallet(t, service, "user-1", 500)

	const attempts = 10
	fee := decimal.NewFromInt(100)

	var wg sync.WaitGroup
	outcomes := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := service.CaptureEntryFee(context.Background(), "user-1", fmt.Sprintf("contest-%d", n), fmt.Sprintf("entry-%d", n), fee)
			outcomes <- err
		}(i)
	}
	wg.Wait()
	close(outcomes)

	var succeeded, rejected int
	for err := range outcomes {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 5 || rejected != 5 {
		t.Fatalf("expected 5 debits and 5 rejections, got %d and %d", succeeded, rejected)
	}

	wallet, err := service.Wallet(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("wallet failed: %v", err)
	}
	if !wallet.Balance.IsZero() {
		t.Fatalf("expected balance drained to zero, got %s", wallet.Balance)
	}
}

func TestLedgerService_BalanceMatchesLedgerHistory(t *testing.T) {
	service := newTestLedgerService(nil)
	fundWallet(t, service, "alice", 1000)

	if _, _, err := service.Transfer(t.Context(), TransferInput{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     decimal.NewFromInt(300),
	}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if _, err := service.CaptureEntryFee(t.Context(), "alice", "contest-1", "entry-a", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("capture entry fee failed: %v", err)
	}
	if _, err := service.CaptureEntryFee(t.Context(), "bob", "contest-1", "entry-b", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("capture entry fee failed: %v", err)
	}
	if _, err := service.PayWinnings(t.Context(), "bob", "contest-1", "entry-b", decimal.NewFromInt(180)); err != nil {
		t.Fatalf("pay winnings failed: %v", err)
	}

	// Every wallet balance equals the sum of its completed movements.
	for _, userID := range []string{"alice", "bob"} {
		items, err := service.ListTransactions(t.Context(), ListTransactionsInput{
			UserID:   userID,
			Statuses: []ledger.Status{ledger.StatusCompleted},
			Limit:    200,
		})
		if err != nil {
			t.Fatalf("list transactions failed: %v", err)
		}

		total := decimal.Zero
		for _, tx := range items {
			total = total.Add(tx.Amount)
		}

		wallet, err := service.Wallet(t.Context(), userID)
		if err != nil {
			t.Fatalf("wallet failed: %v", err)
		}
		if !wallet.Balance.Equal(total) {
			t.Fatalf("wallet %s balance %s does not match ledger sum %s", userID, wallet.Balance, total)
		}
	}
}
