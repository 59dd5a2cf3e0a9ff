package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
	idgen "github.com/riskibarqy/fantasy-contest/internal/platform/id"
	"github.com/riskibarqy/fantasy-contest/internal/platform/metrics"
)

// RosterConfig tunes roster write contention.
type RosterConfig struct {
	// MaxWriteAttempts bounds optimistic retries when a roster write
	// loses a version race.
	MaxWriteAttempts int
}

// RosterService manages the team-building flow: drafting a squad for a
// match, submitting it, and the kickoff freeze plus scoring that the
// match lifecycle jobs drive. All user edits stop once the match starts.
type RosterService struct {
	rosters  roster.Repository
	players  player.Repository
	matches  match.Repository
	idGen    idgen.Generator
	notifier notify.Notifier
	cfg      RosterConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewRosterService(
	rosters roster.Repository,
	players player.Repository,
	matches match.Repository,
	idGen idgen.Generator,
	notifier notify.Notifier,
	cfg RosterConfig,
	logger *slog.Logger,
) *RosterService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = 5
	}

	return &RosterService{
		rosters:  rosters,
		players:  players,
		matches:  matches,
		idGen:    idGen,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

type CreateRosterInput struct {
	UserID  string
	MatchID string
	Name    string
}

// CreateRoster opens an empty draft for a match that has not started.
// Each user gets one roster per match.
func (s *RosterService) CreateRoster(ctx context.Context, input CreateRosterInput) (roster.Roster, error) {
	userID := strings.TrimSpace(input.UserID)
	matchID := strings.TrimSpace(input.MatchID)
	if userID == "" || matchID == "" {
		return roster.Roster{}, fmt.Errorf("%w: user id and match id are required", ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Team 1"
	}

	m, err := s.matchByID(ctx, matchID)
	if err != nil {
		return roster.Roster{}, err
	}
	now := s.now().UTC()
	if m.Started(now) {
		return roster.Roster{}, fmt.Errorf("%w: match %s already started", ErrInvalidInput, matchID)
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return roster.Roster{}, fmt.Errorf("generate roster id: %w", err)
	}

	r := roster.New(id, userID, matchID, m.Sport, name, now)
	if err := r.Validate(); err != nil {
		return roster.Roster{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.rosters.Create(ctx, r); err != nil {
		return roster.Roster{}, fmt.Errorf("create roster: %w", err)
	}
	return r, nil
}

// Roster returns one roster to its owner.
func (s *RosterService) Roster(ctx context.Context, rosterID, userID string) (roster.Roster, error) {
	rosterID = strings.TrimSpace(rosterID)
	userID = strings.TrimSpace(userID)
	if rosterID == "" || userID == "" {
		return roster.Roster{}, fmt.Errorf("%w: roster id and user id are required", ErrInvalidInput)
	}

	r, ok, err := s.rosters.Get(ctx, rosterID)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("get roster: %w", err)
	}
	if !ok {
		return roster.Roster{}, fmt.Errorf("%w: roster %s", ErrNotFound, rosterID)
	}
	if r.UserID != userID {
		return roster.Roster{}, fmt.Errorf("%w: roster %s belongs to another user", ErrForbidden, rosterID)
	}
	return r, nil
}

func (s *RosterService) ListByUser(ctx context.Context, userID string) ([]roster.Roster, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	items, err := s.rosters.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	return items, nil
}

type RosterPlayerInput struct {
	RosterID string
	UserID   string
	PlayerID string
}

// AddPlayer puts a player into the draft, snapshotting the price at the
// moment of selection. The player must play the roster's sport and be
// fielded by one of the two match teams.
func (s *RosterService) AddPlayer(ctx context.Context, input RosterPlayerInput) (roster.Roster, error) {
	rosterID, userID, playerID, err := input.normalized()
	if err != nil {
		return roster.Roster{}, err
	}

	p, ok, err := s.players.Get(ctx, playerID)
	if err != nil {
		return roster.Roster{}, fmt.Errorf("get player: %w", err)
	}
	if !ok {
		return roster.Roster{}, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}

	return s.mutate(ctx, rosterID, userID, "add player", func(current roster.Roster, m match.Match) (roster.Roster, error) {
		if p.Sport != current.Sport {
			return roster.Roster{}, fmt.Errorf("%w: player %s plays %s, roster is %s", ErrInvalidInput, p.ID, p.Sport, current.Sport)
		}
		if p.TeamID != m.HomeTeamID && p.TeamID != m.AwayTeamID {
			return roster.Roster{}, fmt.Errorf("%w: player %s is not fielded in match %s", ErrInvalidInput, p.ID, m.ID)
		}
		rules, err := sport.DefaultRules(current.Sport)
		if err != nil {
			return roster.Roster{}, err
		}

		pick := roster.Pick{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			TeamID:     p.TeamID,
			Price:      p.Price,
		}
		return current.WithPlayer(pick, rules, s.now().UTC())
	})
}

// RemovePlayer drops a pick from the draft.
func (s *RosterService) RemovePlayer(ctx context.Context, input RosterPlayerInput) (roster.Roster, error) {
	rosterID, userID, playerID, err := input.normalized()
	if err != nil {
		return roster.Roster{}, err
	}
	return s.mutate(ctx, rosterID, userID, "remove player", func(current roster.Roster, _ match.Match) (roster.Roster, error) {
		return current.WithoutPlayer(playerID, s.now().UTC())
	})
}

// SetCaptain moves the captain armband to the given pick.
func (s *RosterService) SetCaptain(ctx context.Context, input RosterPlayerInput) (roster.Roster, error) {
	rosterID, userID, playerID, err := input.normalized()
	if err != nil {
		return roster.Roster{}, err
	}
	return s.mutate(ctx, rosterID, userID, "set captain", func(current roster.Roster, _ match.Match) (roster.Roster, error) {
		return current.WithCaptain(playerID, s.now().UTC())
	})
}

// SetViceCaptain moves the vice-captain armband to the given pick.
func (s *RosterService) SetViceCaptain(ctx context.Context, input RosterPlayerInput) (roster.Roster, error) {
	rosterID, userID, playerID, err := input.normalized()
	if err != nil {
		return roster.Roster{}, err
	}
	return s.mutate(ctx, rosterID, userID, "set vice-captain", func(current roster.Roster, _ match.Match) (roster.Roster, error) {
		return current.WithViceCaptain(playerID, s.now().UTC())
	})
}

// Submit finalizes the draft so it can enter contests. The squad must be
// complete, under budget, and submitted before kickoff.
func (s *RosterService) Submit(ctx context.Context, rosterID, userID string) (roster.Roster, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.Submit")
	defer span.End()

	rosterID = strings.TrimSpace(rosterID)
	userID = strings.TrimSpace(userID)
	if rosterID == "" || userID == "" {
		return roster.Roster{}, fmt.Errorf("%w: roster id and user id are required", ErrInvalidInput)
	}

	submitted, err := s.mutate(ctx, rosterID, userID, "submit roster", func(current roster.Roster, _ match.Match) (roster.Roster, error) {
		rules, err := sport.DefaultRules(current.Sport)
		if err != nil {
			return roster.Roster{}, err
		}
		return current.Submitted(rules, s.now().UTC())
	})
	if err != nil {
		return roster.Roster{}, err
	}

	s.notifier.RosterChanged(ctx, submitted.ID, string(submitted.Status))
	return submitted, nil
}

func (in RosterPlayerInput) normalized() (rosterID, userID, playerID string, err error) {
	rosterID = strings.TrimSpace(in.RosterID)
	userID = strings.TrimSpace(in.UserID)
	playerID = strings.TrimSpace(in.PlayerID)
	if rosterID == "" || userID == "" || playerID == "" {
		return "", "", "", fmt.Errorf("%w: roster id, user id, and player id are required", ErrInvalidInput)
	}
	return rosterID, userID, playerID, nil
}

// mutate applies one owner-checked edit under the optimistic write loop.
// Every edit requires the roster's match to not have started yet.
func (s *RosterService) mutate(ctx context.Context, rosterID, userID, op string, fn func(roster.Roster, match.Match) (roster.Roster, error)) (roster.Roster, error) {
	var out roster.Roster
	err := s.withRosterAttempts(op, func() error {
		current, ok, err := s.rosters.Get(ctx, rosterID)
		if err != nil {
			return fmt.Errorf("get roster: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: roster %s", ErrNotFound, rosterID)
		}
		if current.UserID != userID {
			return fmt.Errorf("%w: roster %s belongs to another user", ErrForbidden, rosterID)
		}

		m, err := s.matchByID(ctx, current.MatchID)
		if err != nil {
			return err
		}
		if m.Started(s.now().UTC()) {
			return fmt.Errorf("%w: match %s already started", ErrInvalidInput, m.ID)
		}

		next, err := fn(current, m)
		if err != nil {
			return err
		}
		if err := s.rosters.Update(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return roster.Roster{}, err
	}
	return out, nil
}

type LockResult struct {
	MatchID string
	Locked  int
	Skipped int
}

// LockByMatch freezes every submitted roster at kickoff. Drafts are
// skipped; they never entered a contest and can simply expire.
func (s *RosterService) LockByMatch(ctx context.Context, matchID string) (LockResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.LockByMatch")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return LockResult{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	items, err := s.rosters.ListByMatch(ctx, matchID)
	if err != nil {
		return LockResult{}, fmt.Errorf("list rosters: %w", err)
	}

	result := LockResult{MatchID: matchID}
	now := s.now().UTC()
	for _, item := range items {
		if item.Status != roster.StatusSubmitted {
			result.Skipped++
			continue
		}

		var flipped bool
		err := s.withRosterAttempts("lock roster", func() error {
			current, ok, err := s.rosters.Get(ctx, item.ID)
			if err != nil {
				return err
			}
			if !ok || current.Status != roster.StatusSubmitted {
				flipped = false
				return nil
			}
			locked, err := current.Locked(now)
			if err != nil {
				return err
			}
			if err := s.rosters.Update(ctx, locked); err != nil {
				return err
			}
			flipped = true
			return nil
		})
		if err != nil {
			return result, err
		}
		if flipped {
			result.Locked++
			s.notifier.RosterChanged(ctx, item.ID, string(roster.StatusLocked))
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

type ScoreResult struct {
	MatchID string
	Scored  int
	Skipped int
}

// ScoreByMatch computes every locked roster's points from the match's
// performance set. A submitted roster that missed the kickoff freeze is
// locked here before scoring, so a skipped lock job cannot wedge the
// payout chain. Rescoring with the same events yields the same totals.
func (s *RosterService) ScoreByMatch(ctx context.Context, matchID string, events map[string]roster.Performance) (ScoreResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.ScoreByMatch")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return ScoreResult{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	items, err := s.rosters.ListByMatch(ctx, matchID)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("list rosters: %w", err)
	}

	result := ScoreResult{MatchID: matchID}
	now := s.now().UTC()
	for _, item := range items {
		if item.Status == roster.StatusDraft {
			result.Skipped++
			continue
		}

		var scored bool
		err := s.withRosterAttempts("score roster", func() error {
			current, ok, err := s.rosters.Get(ctx, item.ID)
			if err != nil {
				return err
			}
			if !ok || current.Status == roster.StatusDraft {
				scored = false
				return nil
			}
			if current.Status == roster.StatusSubmitted {
				s.logger.WarnContext(ctx, "roster locked late during scoring",
					"roster_id", current.ID,
					"match_id", matchID,
				)
				if current, err = current.Locked(now); err != nil {
					return err
				}
			}
			rules, err := sport.DefaultRules(current.Sport)
			if err != nil {
				return err
			}
			next, err := current.Scored(events, rules, now)
			if err != nil {
				return err
			}
			if err := s.rosters.Update(ctx, next); err != nil {
				return err
			}
			scored = true
			return nil
		})
		if err != nil {
			return result, err
		}
		if scored {
			result.Scored++
			metrics.RostersScoredTotal.WithLabelValues(string(item.Sport)).Inc()
			s.notifier.RosterChanged(ctx, item.ID, string(roster.StatusScored))
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (s *RosterService) matchByID(ctx context.Context, matchID string) (match.Match, error) {
	m, ok, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	if !ok {
		return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	return m, nil
}

// withRosterAttempts runs fn until it sticks, retrying optimistic
// version conflicts up to the configured bound.
func (s *RosterService) withRosterAttempts(op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxWriteAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, roster.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}
