package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
)

// RosterScorer is the slice of the roster lifecycle the match chain
// drives.
type RosterScorer interface {
	LockByMatch(ctx context.Context, matchID string) (LockResult, error)
	ScoreByMatch(ctx context.Context, matchID string, events map[string]roster.Performance) (ScoreResult, error)
}

// ContestSettler is the slice of the contest lifecycle the match chain
// drives.
type ContestSettler interface {
	StartByMatch(ctx context.Context, matchID string) (int, error)
	ApplyMatchPerformance(ctx context.Context, matchID string, events map[string]roster.Performance) (int, error)
	ListContests(ctx context.Context, input ListContestsInput) ([]contest.Contest, error)
	Settle(ctx context.Context, contestID string) (SettlementResult, error)
	Cancel(ctx context.Context, contestID, reason string) (CancellationResult, error)
}

// ScoringService drives the match lifecycle end to end: the kickoff
// freeze, live rescoring from performance feeds, and the terminal
// settle-or-refund chain. Every step delegates to the roster and
// contest services, so re-running any step is safe.
type ScoringService struct {
	rosters  RosterScorer
	contests ContestSettler
	matches  match.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewScoringService(
	rosters RosterScorer,
	contests ContestSettler,
	matches match.Repository,
	logger *slog.Logger,
) *ScoringService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoringService{
		rosters:  rosters,
		contests: contests,
		matches:  matches,
		logger:   logger,
		now:      time.Now,
	}
}

type MatchStartResult struct {
	MatchID         string
	RostersLocked   int
	ContestsStarted int
}

// StartMatch runs the kickoff chain: the match goes live, submitted
// rosters freeze, and upcoming contests close their registration.
// Re-running mop-ups whatever a previous run missed.
func (s *ScoringService) StartMatch(ctx context.Context, matchID string) (MatchStartResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.StartMatch")
	defer span.End()

	m, err := s.matchByID(ctx, matchID)
	if err != nil {
		return MatchStartResult{}, err
	}
	if match.IsCancelledLikeStatus(m.Status) {
		return MatchStartResult{}, fmt.Errorf("%w: match %s is %s", ErrInvalidInput, m.ID, m.Status)
	}
	if match.IsCompletedStatus(m.Status) {
		return MatchStartResult{}, fmt.Errorf("%w: match %s already completed", ErrInvalidInput, m.ID)
	}

	if !match.IsLiveStatus(m.Status) {
		m.Status = match.StatusLive
		if err := s.matches.Upsert(ctx, m); err != nil {
			return MatchStartResult{}, fmt.Errorf("update match: %w", err)
		}
	}

	locked, err := s.rosters.LockByMatch(ctx, m.ID)
	if err != nil {
		return MatchStartResult{}, err
	}
	started, err := s.contests.StartByMatch(ctx, m.ID)
	if err != nil {
		return MatchStartResult{}, err
	}

	s.logger.InfoContext(ctx, "match started",
		"match_id", m.ID,
		"rosters_locked", locked.Locked,
		"contests_started", started,
	)
	return MatchStartResult{
		MatchID:         m.ID,
		RostersLocked:   locked.Locked,
		ContestsStarted: started,
	}, nil
}

type PerformanceResult struct {
	MatchID         string
	RostersScored   int
	ContestsUpdated int
}

// ApplyPerformance pushes one performance snapshot through the scoring
// chain: rosters first, then every open contest over the match. Each
// snapshot replaces the previous one, so feeding cumulative totals keeps
// points correct during live play.
func (s *ScoringService) ApplyPerformance(ctx context.Context, matchID string, events map[string]roster.Performance) (PerformanceResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.ApplyPerformance")
	defer span.End()

	m, err := s.matchByID(ctx, matchID)
	if err != nil {
		return PerformanceResult{}, err
	}
	if !m.Started(s.now().UTC()) {
		return PerformanceResult{}, fmt.Errorf("%w: match %s has not started", ErrInvalidInput, m.ID)
	}

	scored, err := s.rosters.ScoreByMatch(ctx, m.ID, events)
	if err != nil {
		return PerformanceResult{}, err
	}
	updated, err := s.contests.ApplyMatchPerformance(ctx, m.ID, events)
	if err != nil {
		return PerformanceResult{}, err
	}

	return PerformanceResult{
		MatchID:         m.ID,
		RostersScored:   scored.Scored,
		ContestsUpdated: updated,
	}, nil
}

type CompleteMatchInput struct {
	MatchID   string
	HomeScore int
	AwayScore int
	// Events is the final performance set the payouts are computed from.
	Events map[string]roster.Performance
}

type MatchCompletionResult struct {
	MatchID         string
	RostersScored   int
	ContestsUpdated int
	ContestsSettled int
	SettleFailures  int
}

// CompleteMatch runs the terminal chain: the final score is recorded,
// rosters take their final points, and every open contest is settled.
// One contest failing to settle does not block the others; the error
// reports how many remain so the job can retry.
func (s *ScoringService) CompleteMatch(ctx context.Context, input CompleteMatchInput) (MatchCompletionResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.CompleteMatch")
	defer span.End()

	m, err := s.matchByID(ctx, input.MatchID)
	if err != nil {
		return MatchCompletionResult{}, err
	}
	if match.IsCancelledLikeStatus(m.Status) {
		return MatchCompletionResult{}, fmt.Errorf("%w: match %s is %s", ErrInvalidInput, m.ID, m.Status)
	}

	now := s.now().UTC()
	if !match.IsCompletedStatus(m.Status) {
		home, away := input.HomeScore, input.AwayScore
		m.Status = match.StatusCompleted
		m.HomeScore = &home
		m.AwayScore = &away
		m.CompletedAt = &now
		if err := s.matches.Upsert(ctx, m); err != nil {
			return MatchCompletionResult{}, fmt.Errorf("update match: %w", err)
		}
	}

	result := MatchCompletionResult{MatchID: m.ID}

	scored, err := s.rosters.ScoreByMatch(ctx, m.ID, input.Events)
	if err != nil {
		return result, err
	}
	result.RostersScored = scored.Scored

	updated, err := s.contests.ApplyMatchPerformance(ctx, m.ID, input.Events)
	if err != nil {
		return result, err
	}
	result.ContestsUpdated = updated

	open, err := s.contests.ListContests(ctx, ListContestsInput{
		MatchID:  m.ID,
		Statuses: []contest.Status{contest.StatusUpcoming, contest.StatusLive},
	})
	if err != nil {
		return result, err
	}

	for _, c := range open {
		if _, err := s.contests.Settle(ctx, c.ID); err != nil {
			s.logger.ErrorContext(ctx, "contest settlement failed",
				"match_id", m.ID,
				"contest_id", c.ID,
				"error", err,
			)
			result.SettleFailures++
			continue
		}
		result.ContestsSettled++
	}
	if result.SettleFailures > 0 {
		return result, fmt.Errorf("complete match %s: %d of %d contests failed to settle", m.ID, result.SettleFailures, len(open))
	}

	s.logger.InfoContext(ctx, "match completed",
		"match_id", m.ID,
		"rosters_scored", result.RostersScored,
		"contests_settled", result.ContestsSettled,
	)
	return result, nil
}

type MatchCancellationResult struct {
	MatchID           string
	ContestsCancelled int
	CancelFailures    int
}

// CancelMatch voids the match and every open contest over it, refunding
// all entry fees. A completed match can no longer be cancelled.
func (s *ScoringService) CancelMatch(ctx context.Context, matchID, reason string) (MatchCancellationResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScoringService.CancelMatch")
	defer span.End()

	m, err := s.matchByID(ctx, matchID)
	if err != nil {
		return MatchCancellationResult{}, err
	}
	if match.IsCompletedStatus(m.Status) {
		return MatchCancellationResult{}, fmt.Errorf("%w: match %s already completed", ErrInvalidInput, m.ID)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = fmt.Sprintf("match %s cancelled", m.ID)
	}

	if !match.IsCancelledLikeStatus(m.Status) {
		m.Status = match.StatusCancelled
		if err := s.matches.Upsert(ctx, m); err != nil {
			return MatchCancellationResult{}, fmt.Errorf("update match: %w", err)
		}
	}

	open, err := s.contests.ListContests(ctx, ListContestsInput{
		MatchID:  m.ID,
		Statuses: []contest.Status{contest.StatusUpcoming, contest.StatusLive},
	})
	if err != nil {
		return MatchCancellationResult{}, err
	}

	result := MatchCancellationResult{MatchID: m.ID}
	for _, c := range open {
		if _, err := s.contests.Cancel(ctx, c.ID, reason); err != nil {
			s.logger.ErrorContext(ctx, "contest cancellation failed",
				"match_id", m.ID,
				"contest_id", c.ID,
				"error", err,
			)
			result.CancelFailures++
			continue
		}
		result.ContestsCancelled++
	}
	if result.CancelFailures > 0 {
		return result, fmt.Errorf("cancel match %s: %d of %d contests failed to cancel", m.ID, result.CancelFailures, len(open))
	}

	return result, nil
}

func (s *ScoringService) matchByID(ctx context.Context, matchID string) (match.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return match.Match{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	m, ok, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return m, nil
}
