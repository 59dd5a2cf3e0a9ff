package usecase

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
)

const contestTestMatchID = "mt-01"

var contestTestNow = time.Date(2025, 5, 3, 9, 0, 0, 0, time.UTC)

type contestFixture struct {
	service  *ContestService
	ledger   *LedgerService
	contests *memory.ContestRepository
	rosters  *memory.RosterRepository
	matches  *memory.MatchRepository
}

func newContestFixture() *contestFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledgerSvc := NewLedgerService(
		memory.NewLedgerRepository(),
		&seqIDGenerator{prefix: "tx"},
		nil,
		notify.Nop{},
		LedgerConfig{},
		logger,
	)
	ledgerSvc.now = func() time.Time { return contestTestNow }

	contests := memory.NewContestRepository()
	rosters := memory.NewRosterRepository()
	matches := memory.NewMatchRepository([]match.Match{{
		ID:         contestTestMatchID,
		Sport:      sport.Football,
		HomeTeam:   "Persija Jakarta",
		AwayTeam:   "Persib Bandung",
		HomeTeamID: "idn-persija",
		AwayTeamID: "idn-persib",
		StartsAt:   contestTestNow.Add(24 * time.Hour),
		Status:     match.StatusScheduled,
	}})

	service := NewContestService(
		contests,
		rosters,
		matches,
		ledgerSvc,
		&seqIDGenerator{prefix: "entry"},
		notify.Nop{},
		ContestConfig{SettlementWorkers: 2},
		logger,
	)
	service.now = func() time.Time { return contestTestNow }

	return &contestFixture{
		service:  service,
		ledger:   ledgerSvc,
		contests: contests,
		rosters:  rosters,
		matches:  matches,
	}
}

func (f *contestFixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := f.ledger.Grant(t.Context(), GrantInput{
		UserID:      userID,
		Type:        ledger.TypeBonus,
		Amount:      decimal.NewFromInt(amount),
		Description: "test bankroll",
	})
	if err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
}

func (f *contestFixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, err := f.ledger.Wallet(t.Context(), userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return w.Balance
}

func (f *contestFixture) submitTeam(t *testing.T, userID, teamID string, picks ...roster.Pick) {
	t.Helper()
	err := f.rosters.Create(t.Context(), roster.Roster{
		ID:        teamID,
		UserID:    userID,
		MatchID:   contestTestMatchID,
		Sport:     sport.Football,
		Name:      teamID,
		Status:    roster.StatusSubmitted,
		Picks:     picks,
		CreatedAt: contestTestNow,
		UpdatedAt: contestTestNow,
	})
	if err != nil {
		t.Fatalf("create roster: %v", err)
	}
}

func (f *contestFixture) createContest(t *testing.T, mutate func(*CreateContestInput)) contest.Contest {
	t.Helper()
	input := CreateContestInput{
		Name:       "Weekend Mega",
		MatchID:    contestTestMatchID,
		EntryType:  contest.EntryMultiple,
		EntryFee:   decimal.NewFromInt(100),
		PrizePool:  decimal.NewFromInt(180),
		TotalSpots: 4,
		PrizeDistribution: []contest.PrizeSlot{
			{Rank: 1, Prize: decimal.NewFromInt(120)},
			{Rank: 2, Prize: decimal.NewFromInt(60)},
		},
		CreatedBy: "admin-1",
	}
	if mutate != nil {
		mutate(&input)
	}
	c, err := f.service.CreateContest(t.Context(), input)
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	return c
}

func (f *contestFixture) join(t *testing.T, contestID, userID, teamID string) JoinResult {
	t.Helper()
	res, err := f.service.Join(t.Context(), JoinContestInput{
		ContestID: contestID,
		UserID:    userID,
		TeamID:    teamID,
	})
	if err != nil {
		t.Fatalf("join contest: %v", err)
	}
	return res
}

// enter funds the user, submits a team, and joins in one step.
func (f *contestFixture) enter(t *testing.T, contestID, userID, teamID string) JoinResult {
	t.Helper()
	f.fund(t, userID, 500)
	f.submitTeam(t, userID, teamID)
	return f.join(t, contestID, userID, teamID)
}

func (f *contestFixture) setPoints(t *testing.T, contestID string, points map[string]float64) {
	t.Helper()
	participants, err := f.contests.ListParticipants(t.Context(), contestID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	for _, p := range participants {
		value, ok := points[p.UserID]
		if !ok {
			continue
		}
		p.Points = value
		if err := f.contests.UpdateParticipant(t.Context(), p); err != nil {
			t.Fatalf("update participant: %v", err)
		}
	}
}

func TestContestService_CreateContestDefaults(t *testing.T) {
	f := newContestFixture()

	c := f.createContest(t, func(in *CreateContestInput) {
		in.PrizePool = decimal.NewFromInt(200)
		in.PrizeDistribution = []contest.PrizeSlot{
			{Rank: 1, Percentage: 60},
			{Rank: 2, Percentage: 40},
		}
	})

	if c.Status != contest.StatusUpcoming {
		t.Fatalf("expected upcoming, got %s", c.Status)
	}
	if c.Sport != sport.Football {
		t.Fatalf("expected sport from match, got %s", c.Sport)
	}
	if !c.RegistrationDeadline.Equal(contestTestNow.Add(24 * time.Hour)) {
		t.Fatalf("expected deadline defaulted to kickoff, got %s", c.RegistrationDeadline)
	}
	if c.Rules.SquadSize != 11 {
		t.Fatalf("expected default football squad size 11, got %d", c.Rules.SquadSize)
	}
	if !c.PrizeDistribution[0].Prize.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected 60%% of pool for rank 1, got %s", c.PrizeDistribution[0].Prize)
	}
	if !c.PrizeDistribution[1].Prize.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 40%% of pool for rank 2, got %s", c.PrizeDistribution[1].Prize)
	}
}

func TestContestService_CreateContestValidation(t *testing.T) {
	f := newContestFixture()

	base := CreateContestInput{
		Name:       "Bad Contest",
		MatchID:    contestTestMatchID,
		EntryFee:   decimal.NewFromInt(10),
		PrizePool:  decimal.NewFromInt(15),
		TotalSpots: 2,
		PrizeDistribution: []contest.PrizeSlot{
			{Rank: 1, Prize: decimal.NewFromInt(15)},
		},
	}

	missing := base
	missing.MatchID = "mt-unknown"
	if _, err := f.service.CreateContest(t.Context(), missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown match, got %v", err)
	}

	late := base
	late.RegistrationDeadline = contestTestNow.Add(30 * time.Hour)
	if _, err := f.service.CreateContest(t.Context(), late); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection for deadline after kickoff, got %v", err)
	}

	if err := f.matches.Upsert(t.Context(), match.Match{
		ID:         "mt-live",
		Sport:      sport.Football,
		HomeTeamID: "idn-persebaya",
		AwayTeamID: "idn-baliutd",
		StartsAt:   contestTestNow.Add(-time.Hour),
		Status:     match.StatusLive,
	}); err != nil {
		t.Fatalf("upsert match: %v", err)
	}
	started := base
	started.MatchID = "mt-live"
	if _, err := f.service.CreateContest(t.Context(), started); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection for started match, got %v", err)
	}

	overdrawn := base
	overdrawn.PrizeDistribution = []contest.PrizeSlot{
		{Rank: 1, Prize: decimal.NewFromInt(99)},
	}
	if _, err := f.service.CreateContest(t.Context(), overdrawn); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection when prizes exceed pool, got %v", err)
	}
}

func TestContestService_JoinChargesEntryFee(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)

	res := f.enter(t, c.ID, "user-a", "team-a")

	if res.Participant.ContestID != c.ID || res.Participant.TeamID != "team-a" {
		t.Fatalf("unexpected participant %+v", res.Participant)
	}
	if res.Contest.FilledSpots != 1 {
		t.Fatalf("expected 1 filled spot, got %d", res.Contest.FilledSpots)
	}
	if res.EntryFee == nil {
		t.Fatalf("expected entry fee transaction")
	}
	if res.EntryFee.Type != ledger.TypeContestEntry || res.EntryFee.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed contest_entry debit, got %s/%s", res.EntryFee.Type, res.EntryFee.Status)
	}
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected 400 after fee, got %s", f.balance(t, "user-a"))
	}

	stored, err := f.contests.ListParticipants(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != res.Participant.ID {
		t.Fatalf("expected the participant persisted, got %+v", stored)
	}

	_, found, err := f.ledger.MovementForEntry(t.Context(), ledger.TypeContestEntry, "user-a", c.ID, res.Participant.ID)
	if err != nil {
		t.Fatalf("movement lookup: %v", err)
	}
	if !found {
		t.Fatalf("expected the fee recorded against the entry id")
	}
}

func TestContestService_JoinFreeContest(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, func(in *CreateContestInput) {
		in.EntryFee = decimal.Zero
		in.PrizePool = decimal.Zero
		in.PrizeDistribution = nil
	})

	f.submitTeam(t, "user-a", "team-a")
	res := f.join(t, c.ID, "user-a", "team-a")

	if res.EntryFee != nil {
		t.Fatalf("free contest must not create a fee transaction, got %+v", res.EntryFee)
	}
	if !f.balance(t, "user-a").IsZero() {
		t.Fatalf("expected untouched wallet, got %s", f.balance(t, "user-a"))
	}
}

func TestContestService_JoinTeamChecks(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.fund(t, "user-a", 500)

	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing team, got %v", err)
	}

	f.submitTeam(t, "user-b", "team-b")
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-b"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for another user's team, got %v", err)
	}

	if err := f.rosters.Create(t.Context(), roster.Roster{
		ID:      "team-other-match",
		UserID:  "user-a",
		MatchID: "mt-other",
		Sport:   sport.Football,
		Status:  roster.StatusSubmitted,
	}); err != nil {
		t.Fatalf("create roster: %v", err)
	}
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-other-match"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection for wrong-match team, got %v", err)
	}

	if err := f.rosters.Create(t.Context(), roster.Roster{
		ID:      "team-draft",
		UserID:  "user-c",
		MatchID: contestTestMatchID,
		Sport:   sport.Football,
		Status:  roster.StatusDraft,
	}); err != nil {
		t.Fatalf("create roster: %v", err)
	}
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: c.ID, UserID: "user-c", TeamID: "team-draft"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection for draft team, got %v", err)
	}

	// None of the rejections may touch the wallet.
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected untouched wallet, got %s", f.balance(t, "user-a"))
	}
}

func TestContestService_JoinCapacityAndDeadline(t *testing.T) {
	f := newContestFixture()
	full := f.createContest(t, func(in *CreateContestInput) {
		in.TotalSpots = 1
		in.PrizeDistribution = []contest.PrizeSlot{{Rank: 1, Prize: decimal.NewFromInt(180)}}
	})
	f.enter(t, full.ID, "user-a", "team-a")

	f.fund(t, "user-b", 500)
	f.submitTeam(t, "user-b", "team-b")
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: full.ID, UserID: "user-b", TeamID: "team-b"}); !errors.Is(err, contest.ErrContestFull) {
		t.Fatalf("expected contest full, got %v", err)
	}
	if !f.balance(t, "user-b").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("full rejection must not charge, got %s", f.balance(t, "user-b"))
	}

	open := f.createContest(t, nil)
	f.service.now = func() time.Time { return contestTestNow.Add(25 * time.Hour) }
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: open.ID, UserID: "user-b", TeamID: "team-b"}); !errors.Is(err, contest.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed, got %v", err)
	}
	if !f.balance(t, "user-b").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("late rejection must not charge, got %s", f.balance(t, "user-b"))
	}
}

func TestContestService_JoinDuplicateEntries(t *testing.T) {
	f := newContestFixture()

	single := f.createContest(t, func(in *CreateContestInput) {
		in.EntryType = contest.EntrySingle
	})
	f.fund(t, "user-a", 1000)
	f.submitTeam(t, "user-a", "team-a")
	f.join(t, single.ID, "user-a", "team-a")

	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: single.ID, UserID: "user-a", TeamID: "team-a"}); !errors.Is(err, contest.ErrDuplicateEntry) {
		t.Fatalf("expected duplicate entry on single-entry contest, got %v", err)
	}

	multiple := f.createContest(t, nil)
	f.join(t, multiple.ID, "user-a", "team-a")
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: multiple.ID, UserID: "user-a", TeamID: "team-a"}); !errors.Is(err, contest.ErrDuplicateEntry) {
		t.Fatalf("expected duplicate entry for same team, got %v", err)
	}

	// Two admissions happened, so exactly two fees were charged.
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected two fees charged, got balance %s", f.balance(t, "user-a"))
	}
}

func TestContestService_JoinInsufficientFunds(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)

	f.fund(t, "user-poor", 40)
	f.submitTeam(t, "user-poor", "team-poor")
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: c.ID, UserID: "user-poor", TeamID: "team-poor"}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	if !f.balance(t, "user-poor").Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected untouched balance, got %s", f.balance(t, "user-poor"))
	}
	participants, err := f.contests.ListParticipants(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 0 {
		t.Fatalf("expected no admission without payment, got %d", len(participants))
	}
}

func TestContestService_LeaveRefundsEntryFee(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.enter(t, c.ID, "user-a", "team-a")

	refund, err := f.service.Leave(t.Context(), LeaveContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-a"})
	if err != nil {
		t.Fatalf("leave contest: %v", err)
	}
	if refund == nil || refund.Type != ledger.TypeRefund {
		t.Fatalf("expected refund transaction, got %+v", refund)
	}
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected fee returned, got %s", f.balance(t, "user-a"))
	}

	updated, err := f.service.Contest(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if updated.FilledSpots != 0 {
		t.Fatalf("expected spot released, got %d", updated.FilledSpots)
	}

	if _, err := f.service.Leave(t.Context(), LeaveContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-a"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second leave, got %v", err)
	}
}

func TestContestService_LeaveAfterStartRejected(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.enter(t, c.ID, "user-a", "team-a")

	started, err := f.service.StartByMatch(t.Context(), contestTestMatchID)
	if err != nil {
		t.Fatalf("start by match: %v", err)
	}
	if started != 1 {
		t.Fatalf("expected 1 contest started, got %d", started)
	}

	if _, err := f.service.Leave(t.Context(), LeaveContestInput{ContestID: c.ID, UserID: "user-a", TeamID: "team-a"}); !errors.Is(err, contest.ErrInvalidStatus) {
		t.Fatalf("expected invalid status after start, got %v", err)
	}
}

func TestContestService_RecomputeLeaderboard(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.enter(t, c.ID, "user-a", "team-a")
	f.enter(t, c.ID, "user-b", "team-b")
	f.enter(t, c.ID, "user-c", "team-c")
	f.setPoints(t, c.ID, map[string]float64{"user-a": 80, "user-b": 50, "user-c": 20})

	_, ranked, err := f.service.RecomputeLeaderboard(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("recompute leaderboard: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked entries, got %d", len(ranked))
	}
	if ranked[0].UserID != "user-a" || ranked[0].Rank != 1 || !ranked[0].Prize.Equal(decimal.NewFromInt(120)) || !ranked[0].IsWinner {
		t.Fatalf("unexpected rank 1: %+v", ranked[0])
	}
	if ranked[1].UserID != "user-b" || ranked[1].Rank != 2 || !ranked[1].Prize.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected rank 2: %+v", ranked[1])
	}
	if ranked[2].UserID != "user-c" || ranked[2].Rank != 3 || !ranked[2].Prize.IsZero() || ranked[2].IsWinner {
		t.Fatalf("unexpected rank 3: %+v", ranked[2])
	}

	saved, _, err := f.service.Leaderboard(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if saved.Stats.AveragePoints != 50 || saved.Stats.HighestPoints != 80 || saved.Stats.LowestPoints != 20 {
		t.Fatalf("unexpected stats %+v", saved.Stats)
	}

	// Re-running is a pure recompute of the same inputs.
	_, again, err := f.service.RecomputeLeaderboard(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}
	if again[0].Rank != 1 || again[1].Rank != 2 || again[2].Rank != 3 {
		t.Fatalf("expected stable ranks, got %+v", again)
	}
}

func TestContestService_SettlePaysWinnersOnce(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.enter(t, c.ID, "user-a", "team-a")
	f.enter(t, c.ID, "user-b", "team-b")
	f.enter(t, c.ID, "user-c", "team-c")
	f.setPoints(t, c.ID, map[string]float64{"user-a": 80, "user-b": 50, "user-c": 20})

	result, err := f.service.Settle(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Participants != 3 || result.Winners != 2 || result.Paid != 2 || result.Failed != 0 {
		t.Fatalf("unexpected settlement result %+v", result)
	}

	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(520)) {
		t.Fatalf("expected 400+120 for rank 1, got %s", f.balance(t, "user-a"))
	}
	if !f.balance(t, "user-b").Equal(decimal.NewFromInt(460)) {
		t.Fatalf("expected 400+60 for rank 2, got %s", f.balance(t, "user-b"))
	}
	if !f.balance(t, "user-c").Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected no prize for rank 3, got %s", f.balance(t, "user-c"))
	}

	settled, err := f.service.Contest(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if settled.Status != contest.StatusCompleted || settled.SettledAt == nil {
		t.Fatalf("expected completed contest, got %+v", settled)
	}

	participants, err := f.contests.ListParticipants(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	for _, p := range participants {
		if p.IsWinner && p.PayoutRef == "" {
			t.Fatalf("winner %s missing payout reference", p.UserID)
		}
	}

	// Settling again must not move any money.
	again, err := f.service.Settle(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !again.AlreadySettled {
		t.Fatalf("expected already settled, got %+v", again)
	}
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(520)) {
		t.Fatalf("second settle must not pay again, got %s", f.balance(t, "user-a"))
	}
}

func TestContestService_SettleReplaySkipsPaidEntries(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	resA := f.enter(t, c.ID, "user-a", "team-a")
	f.enter(t, c.ID, "user-b", "team-b")
	f.setPoints(t, c.ID, map[string]float64{"user-a": 80, "user-b": 50})

	// Simulate a previous run that credited rank 1 and crashed before
	// stamping the participant.
	if _, err := f.ledger.PayWinnings(t.Context(), "user-a", c.ID, resA.Participant.ID, decimal.NewFromInt(120)); err != nil {
		t.Fatalf("pre-pay winner: %v", err)
	}

	result, err := f.service.Settle(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Paid != 1 || result.AlreadyPaid != 1 || result.Failed != 0 {
		t.Fatalf("expected 1 paid and 1 replayed, got %+v", result)
	}

	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(520)) {
		t.Fatalf("expected a single credit for user-a, got %s", f.balance(t, "user-a"))
	}
	if !f.balance(t, "user-b").Equal(decimal.NewFromInt(460)) {
		t.Fatalf("expected rank 2 paid, got %s", f.balance(t, "user-b"))
	}
}

func TestContestService_CancelRefundsEntries(t *testing.T) {
	f := newContestFixture()
	c := f.createContest(t, nil)
	f.enter(t, c.ID, "user-a", "team-a")
	f.enter(t, c.ID, "user-b", "team-b")

	result, err := f.service.Cancel(t.Context(), c.ID, "match abandoned")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Participants != 2 || result.Refunded != 2 || result.Failed != 0 {
		t.Fatalf("unexpected cancellation result %+v", result)
	}

	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(500)) || !f.balance(t, "user-b").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected full refunds, got %s and %s", f.balance(t, "user-a"), f.balance(t, "user-b"))
	}

	cancelled, err := f.service.Contest(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("get contest: %v", err)
	}
	if cancelled.Status != contest.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled contest, got %+v", cancelled)
	}

	again, err := f.service.Cancel(t.Context(), c.ID, "")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if !again.AlreadyCancelled {
		t.Fatalf("expected already cancelled, got %+v", again)
	}
	if !f.balance(t, "user-a").Equal(decimal.NewFromInt(500)) {
		t.Fatalf("second cancel must not refund again, got %s", f.balance(t, "user-a"))
	}

	settled := f.createContest(t, func(in *CreateContestInput) {
		in.EntryFee = decimal.Zero
		in.PrizePool = decimal.Zero
		in.PrizeDistribution = nil
	})
	if _, err := f.service.Settle(t.Context(), settled.ID); err != nil {
		t.Fatalf("settle empty contest: %v", err)
	}
	if _, err := f.service.Cancel(t.Context(), settled.ID, ""); !errors.Is(err, contest.ErrInvalidStatus) {
		t.Fatalf("expected cancel after settlement rejected, got %v", err)
	}
}

func TestContestService_StartByMatch(t *testing.T) {
	f := newContestFixture()
	first := f.createContest(t, nil)
	second := f.createContest(t, nil)
	f.enter(t, first.ID, "user-a", "team-a")

	started, err := f.service.StartByMatch(t.Context(), contestTestMatchID)
	if err != nil {
		t.Fatalf("start by match: %v", err)
	}
	if started != 2 {
		t.Fatalf("expected 2 contests started, got %d", started)
	}

	for _, id := range []string{first.ID, second.ID} {
		c, err := f.service.Contest(t.Context(), id)
		if err != nil {
			t.Fatalf("get contest: %v", err)
		}
		if c.Status != contest.StatusLive {
			t.Fatalf("expected live contest %s, got %s", id, c.Status)
		}
	}

	f.fund(t, "user-b", 500)
	f.submitTeam(t, "user-b", "team-b")
	if _, err := f.service.Join(t.Context(), JoinContestInput{ContestID: first.ID, UserID: "user-b", TeamID: "team-b"}); !errors.Is(err, contest.ErrRegistrationClosed) {
		t.Fatalf("expected registration closed on live contest, got %v", err)
	}

	// Starting again finds nothing upcoming.
	started, err = f.service.StartByMatch(t.Context(), contestTestMatchID)
	if err != nil {
		t.Fatalf("second start by match: %v", err)
	}
	if started != 0 {
		t.Fatalf("expected no contests started twice, got %d", started)
	}
}

func TestContestService_ApplyMatchPerformance(t *testing.T) {
	f := newContestFixture()

	rules := sport.Rules{
		Sport:                 sport.Football,
		SquadSize:             2,
		BudgetCap:             decimal.NewFromInt(100),
		CaptainMultiplier:     2,
		ViceCaptainMultiplier: 1.5,
		Weights:               map[sport.Stat]float64{sport.StatGoals: 10},
	}
	c := f.createContest(t, func(in *CreateContestInput) {
		in.Rules = &rules
	})

	f.fund(t, "user-a", 500)
	f.submitTeam(t, "user-a", "team-a",
		roster.Pick{PlayerID: "pl-1", IsCaptain: true},
		roster.Pick{PlayerID: "pl-2"},
	)
	f.join(t, c.ID, "user-a", "team-a")

	f.fund(t, "user-b", 500)
	f.submitTeam(t, "user-b", "team-b",
		roster.Pick{PlayerID: "pl-3"},
	)
	f.join(t, c.ID, "user-b", "team-b")

	events := map[string]roster.Performance{
		"pl-1": {sport.StatGoals: 2},
		"pl-2": {sport.StatGoals: 1},
		"pl-3": {sport.StatGoals: 3},
	}
	updated, err := f.service.ApplyMatchPerformance(t.Context(), contestTestMatchID, events)
	if err != nil {
		t.Fatalf("apply match performance: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 contest rescored, got %d", updated)
	}

	_, ranked, err := f.service.Leaderboard(t.Context(), c.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	// Captain 2 goals doubled plus 1 goal = 50; 3 goals plain = 30.
	if ranked[0].UserID != "user-a" || ranked[0].Points != 50 {
		t.Fatalf("unexpected leader %+v", ranked[0])
	}
	if ranked[1].UserID != "user-b" || ranked[1].Points != 30 {
		t.Fatalf("unexpected runner-up %+v", ranked[1])
	}

	if _, err := f.service.Settle(t.Context(), c.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// A late event feed must not reopen a settled contest.
	updated, err = f.service.ApplyMatchPerformance(t.Context(), contestTestMatchID, events)
	if err != nil {
		t.Fatalf("apply after settlement: %v", err)
	}
	if updated != 0 {
		t.Fatalf("expected settled contest untouched, got %d", updated)
	}
}
