package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
	idgen "github.com/riskibarqy/fantasy-contest/internal/platform/id"
	"github.com/riskibarqy/fantasy-contest/internal/platform/metrics"
)

// ContestLedger is the slice of the money ledger the contest engine
// drives: synchronous entry debits, prize credits, refunds, and the
// lookup that keeps settlement replays from paying an entry twice.
type ContestLedger interface {
	CaptureEntryFee(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal) (ledger.Transaction, error)
	PayWinnings(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal) (ledger.Transaction, error)
	RefundEntry(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal, reason string) (ledger.Transaction, error)
	MovementForEntry(ctx context.Context, txType ledger.Type, userID, contestID, entryID string) (ledger.Transaction, bool, error)
}

// ContestConfig tunes contest write contention and settlement fan-out.
type ContestConfig struct {
	// MaxWriteAttempts bounds optimistic retries when a contest or
	// participant write loses a version race.
	MaxWriteAttempts int
	// SettlementWorkers bounds payout and refund concurrency.
	SettlementWorkers int
}

type ContestService struct {
	contests contest.Repository
	rosters  roster.Repository
	matches  match.Repository
	funds    ContestLedger
	idGen    idgen.Generator
	notifier notify.Notifier
	cfg      ContestConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewContestService(
	contests contest.Repository,
	rosters roster.Repository,
	matches match.Repository,
	funds ContestLedger,
	idGen idgen.Generator,
	notifier notify.Notifier,
	cfg ContestConfig,
	logger *slog.Logger,
) *ContestService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = 5
	}
	if cfg.SettlementWorkers <= 0 {
		cfg.SettlementWorkers = 4
	}

	return &ContestService{
		contests: contests,
		rosters:  rosters,
		matches:  matches,
		funds:    funds,
		idGen:    idGen,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateContestInput struct {
	Name                 string
	Description          string
	MatchID              string
	EntryType            contest.EntryType
	EntryFee             decimal.Decimal
	PrizePool            decimal.Decimal
	TotalSpots           int
	PrizeDistribution    []contest.PrizeSlot
	RegistrationDeadline time.Time
	Rules                *sport.Rules
	CreatedBy            string
}

// CreateContest opens a new contest over a scheduled match. The sport
// and, when absent, the rules and registration deadline are taken from
// the match itself.
func (s *ContestService) CreateContest(ctx context.Context, input CreateContestInput) (contest.Contest, error) {
	matchID := strings.TrimSpace(input.MatchID)
	if matchID == "" {
		return contest.Contest{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	m, ok, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return contest.Contest{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}

	now := s.now().UTC()
	if m.Started(now) {
		return contest.Contest{}, fmt.Errorf("%w: match %s already started", ErrInvalidInput, matchID)
	}

	rules := sport.Rules{}
	if input.Rules != nil {
		rules = *input.Rules
	} else if rules, err = sport.DefaultRules(m.Sport); err != nil {
		return contest.Contest{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if rules.Sport != m.Sport {
		return contest.Contest{}, fmt.Errorf("%w: rules are for %s but match is %s", ErrInvalidInput, rules.Sport, m.Sport)
	}

	deadline := input.RegistrationDeadline
	if deadline.IsZero() {
		deadline = m.StartsAt
	}
	if deadline.After(m.StartsAt) {
		return contest.Contest{}, fmt.Errorf("%w: registration deadline is after match start", ErrInvalidInput)
	}
	if !now.Before(deadline) {
		return contest.Contest{}, fmt.Errorf("%w: registration deadline already passed", ErrInvalidInput)
	}

	entryType := input.EntryType
	if entryType == "" {
		entryType = contest.EntrySingle
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return contest.Contest{}, fmt.Errorf("generate contest id: %w", err)
	}

	c := contest.Contest{
		ID:                   id,
		Name:                 strings.TrimSpace(input.Name),
		Description:          strings.TrimSpace(input.Description),
		MatchID:              matchID,
		Sport:                m.Sport,
		Status:               contest.StatusUpcoming,
		EntryType:            entryType,
		EntryFee:             input.EntryFee,
		PrizePool:            input.PrizePool,
		TotalSpots:           input.TotalSpots,
		PrizeDistribution:    resolveDistribution(input.PrizeDistribution, input.PrizePool),
		Rules:                rules,
		RegistrationDeadline: deadline.UTC(),
		CreatedBy:            strings.TrimSpace(input.CreatedBy),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := c.Validate(); err != nil {
		return contest.Contest{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.contests.CreateContest(ctx, c); err != nil {
		return contest.Contest{}, fmt.Errorf("create contest: %w", err)
	}

	s.notifier.ContestChanged(ctx, c.ID, c.FilledSpots)
	return c, nil
}

// resolveDistribution fills percentage-only slots from the prize pool.
// Slots carrying a fixed prize pass through untouched.
func resolveDistribution(slots []contest.PrizeSlot, prizePool decimal.Decimal) []contest.PrizeSlot {
	out := make([]contest.PrizeSlot, len(slots))
	copy(out, slots)
	for i, slot := range out {
		if slot.Prize.IsZero() && slot.Percentage > 0 {
			share := decimal.NewFromFloat(slot.Percentage).Div(decimal.NewFromInt(100))
			out[i].Prize = prizePool.Mul(share).Round(2)
		}
	}
	return out
}

func (s *ContestService) Contest(ctx context.Context, contestID string) (contest.Contest, error) {
	return s.contestByID(ctx, contestID)
}

func (s *ContestService) contestByID(ctx context.Context, contestID string) (contest.Contest, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return contest.Contest{}, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}
	c, ok, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return contest.Contest{}, fmt.Errorf("get contest: %w", err)
	}
	if !ok {
		return contest.Contest{}, fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
	}
	return c, nil
}

type ListContestsInput struct {
	MatchID  string
	Statuses []contest.Status
	Limit    int
	Offset   int
}

func (s *ContestService) ListContests(ctx context.Context, input ListContestsInput) ([]contest.Contest, error) {
	for _, status := range input.Statuses {
		switch status {
		case contest.StatusUpcoming, contest.StatusLive, contest.StatusCompleted, contest.StatusCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown contest status %s", ErrInvalidInput, status)
		}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	items, err := s.contests.ListContests(ctx, contest.Filter{
		MatchID:  strings.TrimSpace(input.MatchID),
		Statuses: input.Statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	return items, nil
}

// UserEntries returns every contest entry the user holds across all
// contests, newest first.
func (s *ContestService) UserEntries(ctx context.Context, userID string) ([]contest.Participant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	entries, err := s.contests.ListUserEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}
	return entries, nil
}

type JoinContestInput struct {
	ContestID string
	UserID    string
	TeamID    string
}

type JoinResult struct {
	Contest     contest.Contest
	Participant contest.Participant
	// EntryFee is the completed debit, nil for free contests.
	EntryFee *ledger.Transaction
}

// Join admits one (user, team) entry. The entry fee is debited before
// the spot is claimed; if the admission then fails the debit is
// refunded, so a losing racer never pays for a spot they did not get.
func (s *ContestService) Join(ctx context.Context, input JoinContestInput) (JoinResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ContestService.Join")
	defer span.End()

	contestID := strings.TrimSpace(input.ContestID)
	userID := strings.TrimSpace(input.UserID)
	teamID := strings.TrimSpace(input.TeamID)
	if contestID == "" || userID == "" || teamID == "" {
		return JoinResult{}, fmt.Errorf("%w: contest id, user id, and team id are required", ErrInvalidInput)
	}

	c, err := s.contestByID(ctx, contestID)
	if err != nil {
		return JoinResult{}, err
	}
	if err := s.checkEntryTeam(ctx, c, userID, teamID); err != nil {
		return JoinResult{}, err
	}

	now := s.now().UTC()
	if err := s.checkDuplicate(ctx, c, userID, teamID); err != nil {
		metrics.ContestJoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
		return JoinResult{}, err
	}
	if _, err := c.WithAdmission(now); err != nil {
		metrics.ContestJoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
		return JoinResult{}, err
	}

	entryID, err := s.idGen.NewID()
	if err != nil {
		return JoinResult{}, fmt.Errorf("generate participant id: %w", err)
	}

	var feeTx *ledger.Transaction
	if c.EntryFee.IsPositive() {
		tx, err := s.funds.CaptureEntryFee(ctx, userID, contestID, entryID, c.EntryFee)
		if err != nil {
			metrics.ContestJoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
			return JoinResult{}, err
		}
		feeTx = &tx
	}

	participant := contest.Participant{
		ID:        entryID,
		ContestID: contestID,
		UserID:    userID,
		TeamID:    teamID,
		EntryTime: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var admitted contest.Contest
	err = s.withContestAttempts("join contest", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		if err := s.checkDuplicate(ctx, current, userID, teamID); err != nil {
			return err
		}
		admitted, err = current.WithAdmission(now)
		if err != nil {
			return err
		}
		return s.contests.AdmitParticipant(ctx, admitted, participant)
	})
	if err != nil {
		if feeTx != nil {
			s.refundCapturedFee(ctx, userID, contestID, entryID, c.EntryFee)
		}
		metrics.ContestJoinsTotal.WithLabelValues(joinOutcome(err)).Inc()
		return JoinResult{}, err
	}

	s.notifier.ContestChanged(ctx, contestID, admitted.FilledSpots)
	metrics.ContestJoinsTotal.WithLabelValues("joined").Inc()
	return JoinResult{Contest: admitted, Participant: participant, EntryFee: feeTx}, nil
}

// checkEntryTeam verifies the roster fielded for the entry: it must
// exist, belong to the joining user, target the contest's match, and be
// out of draft.
func (s *ContestService) checkEntryTeam(ctx context.Context, c contest.Contest, userID, teamID string) error {
	r, ok, err := s.rosters.Get(ctx, teamID)
	if err != nil {
		return fmt.Errorf("get roster: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: team %s", ErrNotFound, teamID)
	}
	if r.UserID != userID {
		return fmt.Errorf("%w: team %s belongs to another user", ErrForbidden, teamID)
	}
	if r.MatchID != c.MatchID {
		return fmt.Errorf("%w: team %s was built for match %s", ErrInvalidInput, teamID, r.MatchID)
	}
	if r.Status == roster.StatusDraft {
		return fmt.Errorf("%w: team %s has not been submitted", ErrInvalidInput, teamID)
	}
	return nil
}

// checkDuplicate enforces the (user, team) uniqueness rule plus the
// one-entry-per-user rule on single-entry contests. Admissions are
// serialized by the contest version, so re-running this inside the
// write loop is enough to keep the rule under concurrency.
func (s *ContestService) checkDuplicate(ctx context.Context, c contest.Contest, userID, teamID string) error {
	if c.EntryType == contest.EntrySingle {
		existing, err := s.contests.ListParticipantsByUser(ctx, c.ID, userID)
		if err != nil {
			return fmt.Errorf("list user participants: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: contest allows one entry per user", contest.ErrDuplicateEntry)
		}
		return nil
	}

	_, ok, err := s.contests.GetParticipant(ctx, c.ID, userID, teamID)
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if ok {
		return fmt.Errorf("%w: team %s already holds a spot", contest.ErrDuplicateEntry, teamID)
	}
	return nil
}

func (s *ContestService) refundCapturedFee(ctx context.Context, userID, contestID, entryID string, amount decimal.Decimal) {
	if _, err := s.funds.RefundEntry(ctx, userID, contestID, entryID, amount, "entry fee refund: admission failed"); err != nil {
		s.logger.ErrorContext(ctx, "entry fee refund failed",
			"contest_id", contestID,
			"user_id", userID,
			"entry_id", entryID,
			"error", err,
		)
	}
}

func joinOutcome(err error) string {
	switch {
	case errors.Is(err, contest.ErrContestFull):
		return "contest_full"
	case errors.Is(err, contest.ErrRegistrationClosed):
		return "registration_closed"
	case errors.Is(err, contest.ErrDuplicateEntry):
		return "duplicate_entry"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}

type LeaveContestInput struct {
	ContestID string
	UserID    string
	TeamID    string
}

// Leave releases the user's spot while the contest is still upcoming
// and returns the entry fee. The refund for a free contest is nil.
func (s *ContestService) Leave(ctx context.Context, input LeaveContestInput) (*ledger.Transaction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ContestService.Leave")
	defer span.End()

	contestID := strings.TrimSpace(input.ContestID)
	userID := strings.TrimSpace(input.UserID)
	teamID := strings.TrimSpace(input.TeamID)
	if contestID == "" || userID == "" || teamID == "" {
		return nil, fmt.Errorf("%w: contest id, user id, and team id are required", ErrInvalidInput)
	}

	now := s.now().UTC()
	var (
		withdrawn contest.Contest
		entry     contest.Participant
	)
	err := s.withContestAttempts("leave contest", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		p, ok, err := s.contests.GetParticipant(ctx, contestID, userID, teamID)
		if err != nil {
			return fmt.Errorf("get participant: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: no entry for team %s", ErrNotFound, teamID)
		}
		next, err := current.WithWithdrawal(now)
		if err != nil {
			return err
		}
		if err := s.contests.RemoveParticipant(ctx, next, p.ID); err != nil {
			return err
		}
		withdrawn, entry = next, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ContestChanged(ctx, contestID, withdrawn.FilledSpots)

	if !withdrawn.EntryFee.IsPositive() {
		return nil, nil
	}
	tx, err := s.funds.RefundEntry(ctx, userID, contestID, entry.ID, withdrawn.EntryFee, "contest entry refund")
	if err != nil {
		s.logger.ErrorContext(ctx, "refund after leave failed",
			"contest_id", contestID,
			"user_id", userID,
			"entry_id", entry.ID,
			"error", err,
		)
		return nil, fmt.Errorf("entry removed but refund failed: %w", err)
	}
	return &tx, nil
}

// Leaderboard returns the stored standings without recomputing them.
func (s *ContestService) Leaderboard(ctx context.Context, contestID string) (contest.Contest, []contest.Participant, error) {
	c, err := s.contestByID(ctx, contestID)
	if err != nil {
		return contest.Contest{}, nil, err
	}
	participants, err := s.contests.ListParticipants(ctx, c.ID)
	if err != nil {
		return contest.Contest{}, nil, fmt.Errorf("list participants: %w", err)
	}
	return c, participants, nil
}

// RecomputeLeaderboard re-ranks the contest from current participant
// points. Completed and cancelled contests are frozen; their stored
// standings are returned untouched, so the call is always safe to
// re-run.
func (s *ContestService) RecomputeLeaderboard(ctx context.Context, contestID string) (contest.Contest, []contest.Participant, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return contest.Contest{}, nil, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}

	var (
		saved  contest.Contest
		ranked []contest.Participant
		wrote  bool
	)
	err := s.withContestAttempts("recompute leaderboard", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		participants, err := s.contests.ListParticipants(ctx, contestID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		if current.Status == contest.StatusCompleted || current.Status == contest.StatusCancelled {
			saved, ranked, wrote = current, participants, false
			return nil
		}
		if err := current.CheckIntegrity(len(participants)); err != nil {
			return err
		}

		rankedNow, stats := contest.Leaderboard(participants, current.PrizeDistribution)
		next := current
		next.Stats = stats
		next.UpdatedAt = s.now().UTC()
		if err := s.contests.SaveLeaderboard(ctx, next, rankedNow); err != nil {
			return err
		}
		saved, ranked, wrote = next, rankedNow, true
		return nil
	})
	if err != nil {
		return contest.Contest{}, nil, err
	}

	if wrote {
		s.notifier.LeaderboardChanged(ctx, contestID)
	}
	return saved, ranked, nil
}

// ApplyMatchPerformance rescores every open contest over the match from
// the raw performance set. Points are computed per contest, so two
// contests over the same match with different weight tables rank the
// same rosters differently.
func (s *ContestService) ApplyMatchPerformance(ctx context.Context, matchID string, events map[string]roster.Performance) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ContestService.ApplyMatchPerformance")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return 0, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	candidates, err := s.contests.ListContests(ctx, contest.Filter{
		MatchID:  matchID,
		Statuses: []contest.Status{contest.StatusUpcoming, contest.StatusLive},
	})
	if err != nil {
		return 0, fmt.Errorf("list contests: %w", err)
	}

	updated := 0
	for _, candidate := range candidates {
		if err := s.rescoreContest(ctx, candidate.ID, events); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (s *ContestService) rescoreContest(ctx context.Context, contestID string, events map[string]roster.Performance) error {
	var wrote bool
	err := s.withContestAttempts("rescore contest", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		if current.Status == contest.StatusCompleted || current.Status == contest.StatusCancelled {
			wrote = false
			return nil
		}
		participants, err := s.contests.ListParticipants(ctx, contestID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}

		for i, p := range participants {
			r, ok, err := s.rosters.Get(ctx, p.TeamID)
			if err != nil {
				return fmt.Errorf("get roster: %w", err)
			}
			if !ok {
				s.logger.WarnContext(ctx, "participant team missing",
					"contest_id", contestID,
					"team_id", p.TeamID,
				)
				continue
			}
			total := 0.0
			for _, pick := range r.Picks {
				total += roster.PickPoints(pick, events[pick.PlayerID], current.Rules)
			}
			participants[i].Points = total
		}

		ranked, stats := contest.Leaderboard(participants, current.PrizeDistribution)
		next := current
		next.Stats = stats
		next.UpdatedAt = s.now().UTC()
		if err := s.contests.SaveLeaderboard(ctx, next, ranked); err != nil {
			return err
		}
		wrote = true
		return nil
	})
	if err != nil {
		return err
	}

	if wrote {
		s.notifier.LeaderboardChanged(ctx, contestID)
	}
	return nil
}

// StartByMatch flips every upcoming contest on the match live. Runs at
// kickoff alongside roster locking.
func (s *ContestService) StartByMatch(ctx context.Context, matchID string) (int, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return 0, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	candidates, err := s.contests.ListContests(ctx, contest.Filter{
		MatchID:  matchID,
		Statuses: []contest.Status{contest.StatusUpcoming},
	})
	if err != nil {
		return 0, fmt.Errorf("list contests: %w", err)
	}

	started := 0
	for _, candidate := range candidates {
		var flipped bool
		err := s.withContestAttempts("start contest", func() error {
			current, ok, err := s.contests.GetContest(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !ok || current.Status != contest.StatusUpcoming {
				flipped = false
				return nil
			}
			live, err := current.Started(s.now().UTC())
			if err != nil {
				return err
			}
			if err := s.contests.UpdateContest(ctx, live); err != nil {
				return err
			}
			flipped = true
			return nil
		})
		if err != nil {
			return started, err
		}
		if flipped {
			started++
		}
	}
	return started, nil
}

type SettlementResult struct {
	ContestID      string
	AlreadySettled bool
	Participants   int
	Winners        int
	Paid           int
	AlreadyPaid    int
	Failed         int
}

// Settle recomputes the final leaderboard, pays every winning entry,
// and freezes the contest. Each payout is keyed by its entry id, so a
// rerun after a crash pays only what the previous run missed; settling
// an already completed contest is a no-op.
func (s *ContestService) Settle(ctx context.Context, contestID string) (SettlementResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ContestService.Settle")
	defer span.End()

	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return SettlementResult{}, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}

	c, err := s.contestByID(ctx, contestID)
	if err != nil {
		return SettlementResult{}, err
	}
	result := SettlementResult{ContestID: contestID}
	switch c.Status {
	case contest.StatusCompleted:
		result.AlreadySettled = true
		return result, nil
	case contest.StatusCancelled:
		return SettlementResult{}, fmt.Errorf("%w: contest is cancelled", contest.ErrInvalidStatus)
	}

	_, ranked, err := s.RecomputeLeaderboard(ctx, contestID)
	if err != nil {
		return SettlementResult{}, err
	}
	result.Participants = len(ranked)

	winners := make([]contest.Participant, 0, len(ranked))
	for _, p := range ranked {
		if p.IsWinner && p.Prize.IsPositive() {
			winners = append(winners, p)
		}
	}
	result.Winners = len(winners)

	if len(winners) > 0 {
		paid, already, failed, err := s.disburse(ctx, winners, func(p contest.Participant) settleOutcome {
			return s.payWinner(ctx, c, p)
		})
		if err != nil {
			return result, err
		}
		result.Paid, result.AlreadyPaid, result.Failed = paid, already, failed
		if failed > 0 {
			return result, fmt.Errorf("settle contest %s: %d of %d payouts failed", contestID, failed, len(winners))
		}
	}

	err = s.withContestAttempts("complete contest", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		if current.Status == contest.StatusCompleted {
			return nil
		}
		settled, err := current.Settled(s.now().UTC())
		if err != nil {
			return err
		}
		return s.contests.UpdateContest(ctx, settled)
	})
	if err != nil {
		return result, err
	}

	s.notifier.ContestChanged(ctx, contestID, c.FilledSpots)
	return result, nil
}

type CancellationResult struct {
	ContestID        string
	AlreadyCancelled bool
	Participants     int
	Refunded         int
	AlreadyRefunded  int
	Failed           int
}

// Cancel voids the contest and returns every entry fee. Refunds are
// keyed by entry id, so re-running after a partial failure only pays
// the entries the previous run missed. The status flips only once
// every refund is through.
func (s *ContestService) Cancel(ctx context.Context, contestID, reason string) (CancellationResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ContestService.Cancel")
	defer span.End()

	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return CancellationResult{}, fmt.Errorf("%w: contest id is required", ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "contest cancelled"
	}

	c, err := s.contestByID(ctx, contestID)
	if err != nil {
		return CancellationResult{}, err
	}
	result := CancellationResult{ContestID: contestID}
	switch c.Status {
	case contest.StatusCancelled:
		result.AlreadyCancelled = true
		return result, nil
	case contest.StatusCompleted:
		return CancellationResult{}, fmt.Errorf("%w: contest already settled", contest.ErrInvalidStatus)
	}

	participants, err := s.contests.ListParticipants(ctx, contestID)
	if err != nil {
		return CancellationResult{}, fmt.Errorf("list participants: %w", err)
	}
	result.Participants = len(participants)

	if c.EntryFee.IsPositive() && len(participants) > 0 {
		refunded, already, failed, err := s.disburse(ctx, participants, func(p contest.Participant) settleOutcome {
			return s.refundOne(ctx, c, p, reason)
		})
		if err != nil {
			return result, err
		}
		result.Refunded, result.AlreadyRefunded, result.Failed = refunded, already, failed
		if failed > 0 {
			return result, fmt.Errorf("cancel contest %s: %d of %d refunds failed", contestID, failed, len(participants))
		}
	}

	err = s.withContestAttempts("cancel contest", func() error {
		current, ok, err := s.contests.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: contest %s", ErrNotFound, contestID)
		}
		if current.Status == contest.StatusCancelled {
			return nil
		}
		cancelled, err := current.Cancelled(s.now().UTC())
		if err != nil {
			return err
		}
		return s.contests.UpdateContest(ctx, cancelled)
	})
	if err != nil {
		return result, err
	}

	s.notifier.ContestChanged(ctx, contestID, c.FilledSpots)
	return result, nil
}

type settleOutcome int

const (
	settleDone settleOutcome = iota
	settleSkipped
	settleFailed
)

// disburse fans one money movement per entry out over the worker pool
// and tallies the outcomes.
func (s *ContestService) disburse(ctx context.Context, entries []contest.Participant, fn func(contest.Participant) settleOutcome) (done, skipped, failed int, err error) {
	var doneCount atomic.Int32
	var skippedCount atomic.Int32
	var failedCount atomic.Int32

	workerPool, err := ants.NewPool(s.cfg.SettlementWorkers)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("create settlement pool: %w", err)
	}
	defer workerPool.Release()

	var workers sync.WaitGroup
	for _, entry := range entries {
		entry := entry
		workers.Add(1)
		if submitErr := workerPool.Submit(func() {
			defer workers.Done()

			switch fn(entry) {
			case settleDone:
				doneCount.Add(1)
			case settleSkipped:
				skippedCount.Add(1)
			default:
				failedCount.Add(1)
			}
		}); submitErr != nil {
			workers.Done()
			return 0, 0, 0, fmt.Errorf("submit settlement task: %w", submitErr)
		}
	}
	workers.Wait()

	return int(doneCount.Load()), int(skippedCount.Load()), int(failedCount.Load()), nil
}

// payWinner credits one prize at most once. The stamped payout
// reference short-circuits replays before the ledger is even asked.
func (s *ContestService) payWinner(ctx context.Context, c contest.Contest, p contest.Participant) settleOutcome {
	if p.PayoutRef != "" {
		return settleSkipped
	}
	tx, found, err := s.funds.MovementForEntry(ctx, ledger.TypeContestWinnings, p.UserID, c.ID, p.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "payout lookup failed",
			"contest_id", c.ID,
			"entry_id", p.ID,
			"error", err,
		)
		return settleFailed
	}

	outcome := settleSkipped
	if !found {
		tx, err = s.funds.PayWinnings(ctx, p.UserID, c.ID, p.ID, p.Prize)
		if err != nil {
			s.logger.ErrorContext(ctx, "winnings payout failed",
				"contest_id", c.ID,
				"entry_id", p.ID,
				"user_id", p.UserID,
				"error", err,
			)
			return settleFailed
		}
		metrics.SettlementPayoutsTotal.Inc()
		outcome = settleDone
	}

	if err := s.stampPayout(ctx, c.ID, p, tx.Reference); err != nil {
		s.logger.ErrorContext(ctx, "payout stamp failed",
			"contest_id", c.ID,
			"entry_id", p.ID,
			"error", err,
		)
		return settleFailed
	}
	return outcome
}

// refundOne returns one entry fee at most once during cancellation.
func (s *ContestService) refundOne(ctx context.Context, c contest.Contest, p contest.Participant, reason string) settleOutcome {
	if p.PayoutRef != "" {
		return settleSkipped
	}
	tx, found, err := s.funds.MovementForEntry(ctx, ledger.TypeRefund, p.UserID, c.ID, p.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "refund lookup failed",
			"contest_id", c.ID,
			"entry_id", p.ID,
			"error", err,
		)
		return settleFailed
	}

	outcome := settleSkipped
	if !found {
		tx, err = s.funds.RefundEntry(ctx, p.UserID, c.ID, p.ID, c.EntryFee, reason)
		if err != nil {
			s.logger.ErrorContext(ctx, "entry refund failed",
				"contest_id", c.ID,
				"entry_id", p.ID,
				"user_id", p.UserID,
				"error", err,
			)
			return settleFailed
		}
		outcome = settleDone
	}

	if err := s.stampPayout(ctx, c.ID, p, tx.Reference); err != nil {
		s.logger.ErrorContext(ctx, "refund stamp failed",
			"contest_id", c.ID,
			"entry_id", p.ID,
			"error", err,
		)
		return settleFailed
	}
	return outcome
}

// stampPayout records the movement reference on the participant so the
// next sweep skips the entry without a ledger lookup.
func (s *ContestService) stampPayout(ctx context.Context, contestID string, p contest.Participant, reference string) error {
	return s.withContestAttempts("stamp payout", func() error {
		current, ok, err := s.contests.GetParticipant(ctx, contestID, p.UserID, p.TeamID)
		if err != nil {
			return fmt.Errorf("get participant: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: participant %s", ErrNotFound, p.ID)
		}
		if current.PayoutRef == reference {
			return nil
		}
		current.PayoutRef = reference
		current.UpdatedAt = s.now().UTC()
		return s.contests.UpdateParticipant(ctx, current)
	})
}

// withContestAttempts runs fn until it sticks, retrying optimistic
// version conflicts up to the configured bound.
func (s *ContestService) withContestAttempts(op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxWriteAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, contest.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}
