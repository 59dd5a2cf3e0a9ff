package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	qb "github.com/riskibarqy/fantasy-contest/internal/platform/querybuilder"
)

// matchUpsertSuffix makes Upsert last write wins. Feed payloads arrive
// out of order, so every column tracks the newest snapshot.
const matchUpsertSuffix = `ON CONFLICT (id) DO UPDATE SET
	sport = EXCLUDED.sport,
	home_team = EXCLUDED.home_team,
	away_team = EXCLUDED.away_team,
	home_team_id = EXCLUDED.home_team_id,
	away_team_id = EXCLUDED.away_team_id,
	venue = EXCLUDED.venue,
	starts_at = EXCLUDED.starts_at,
	status = EXCLUDED.status,
	home_score = EXCLUDED.home_score,
	away_score = EXCLUDED.away_score,
	completed_at = EXCLUDED.completed_at,
	updated_at = NOW()`

// MatchRepository persists the match catalog.
type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (match.Match, bool, error) {
	query, args, err := qb.Select(matchSelectColumns...).From("matches").
		Where(qb.Eq("id", matchID)).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build get match query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("get match: %w", err)
	}

	return matchFromRow(row), true, nil
}

func (r *MatchRepository) List(ctx context.Context) ([]match.Match, error) {
	query, args, err := qb.Select(matchSelectColumns...).From("matches").
		OrderBy("starts_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	return matchesFromRows(rows), nil
}

func (r *MatchRepository) ListUpcoming(ctx context.Context, limit int) ([]match.Match, error) {
	query, args, err := qb.Select(matchSelectColumns...).From("matches").
		Where(qb.Expr("UPPER(status) = ?", match.StatusScheduled)).
		OrderBy("starts_at", "id").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list upcoming matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list upcoming matches: %w", err)
	}

	return matchesFromRows(rows), nil
}

func (r *MatchRepository) Upsert(ctx context.Context, m match.Match) error {
	query, args, err := qb.InsertModel("matches", matchToRow(m), matchUpsertSuffix)
	if err != nil {
		return fmt.Errorf("build upsert match query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert match id=%s: %w", m.ID, err)
	}

	return nil
}

func matchesFromRows(rows []matchTableModel) []match.Match {
	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, matchFromRow(row))
	}
	return out
}
