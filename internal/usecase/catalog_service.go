package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

// CatalogService serves the read-only match and player browse surface
// the roster builder works from. Catalog writes arrive through seeding
// and the match lifecycle, never through this service.
type CatalogService struct {
	players player.Repository
	matches match.Repository
}

func NewCatalogService(players player.Repository, matches match.Repository) *CatalogService {
	return &CatalogService{
		players: players,
		matches: matches,
	}
}

func (s *CatalogService) ListMatches(ctx context.Context) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListMatches")
	defer span.End()

	items, err := s.matches.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return items, nil
}

// UpcomingMatches returns scheduled matches ordered by kickoff. A zero
// or negative limit falls back to 20; anything above 100 is clamped.
func (s *CatalogService) UpcomingMatches(ctx context.Context, limit int) ([]match.Match, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.UpcomingMatches")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items, err := s.matches.ListUpcoming(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming matches: %w", err)
	}
	return items, nil
}

func (s *CatalogService) Match(ctx context.Context, matchID string) (match.Match, error) {
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

// ListPlayersBySport returns the full pick pool for one sport.
func (s *CatalogService) ListPlayersBySport(ctx context.Context, rawSport string) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListPlayersBySport")
	defer span.End()

	selected := sport.Sport(strings.ToLower(strings.TrimSpace(rawSport)))
	if !selected.Valid() {
		return nil, fmt.Errorf("%w: %s", sport.ErrUnknownSport, rawSport)
	}

	items, err := s.players.ListBySport(ctx, selected)
	if err != nil {
		return nil, fmt.Errorf("list players by sport: %w", err)
	}
	return items, nil
}

// MatchPlayers returns the players fielded by either side of a match,
// which is exactly the pool a roster for that match may pick from.
func (s *CatalogService) MatchPlayers(ctx context.Context, matchID string) ([]player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.MatchPlayers")
	defer span.End()

	m, err := s.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}

	pool, err := s.players.ListBySport(ctx, m.Sport)
	if err != nil {
		return nil, fmt.Errorf("list players by sport: %w", err)
	}

	fielded := make([]player.Player, 0, len(pool))
	for _, p := range pool {
		if p.TeamID == m.HomeTeamID || p.TeamID == m.AwayTeamID {
			fielded = append(fielded, p)
		}
	}
	return fielded, nil
}

func (s *CatalogService) Player(ctx context.Context, playerID string) (player.Player, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return player.Player{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	p, ok, err := s.players.Get(ctx, playerID)
	if err != nil {
		return player.Player{}, fmt.Errorf("get player: %w", err)
	}
	if !ok {
		return player.Player{}, fmt.Errorf("%w: player %s", ErrNotFound, playerID)
	}
	return p, nil
}
