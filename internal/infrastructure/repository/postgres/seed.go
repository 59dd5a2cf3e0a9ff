package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the demo match calendar and player pool into an
// empty database. A non-empty matches table means an operator already
// owns the catalog, so the seed backs off entirely.
func BootstrapSeed(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM matches`); err != nil {
		return fmt.Errorf("count matches for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range memory.SeedMatches() {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO matches (id, sport, home_team, away_team, home_team_id, away_team_id, venue, starts_at, status)
VALUES (:id, :sport, :home_team, :away_team, :home_team_id, :away_team_id, :venue, :starts_at, :status)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":           m.ID,
			"sport":        string(m.Sport),
			"home_team":    m.HomeTeam,
			"away_team":    m.AwayTeam,
			"home_team_id": m.HomeTeamID,
			"away_team_id": m.AwayTeamID,
			"venue":        m.Venue,
			"starts_at":    m.StartsAt.UTC(),
			"status":       m.Status,
		})
		if err != nil {
			return fmt.Errorf("bind seed match %s query: %w", m.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed match %s: %w", m.ID, err)
		}
	}

	for _, p := range memory.SeedPlayers() {
		sqlQuery, args, err := sqlx.Named(`
INSERT INTO players (id, sport, team_id, team_name, name, role, price, image_url)
VALUES (:id, :sport, :team_id, :team_name, :name, :role, :price, :image_url)
ON CONFLICT (id) DO NOTHING`, map[string]any{
			"id":        p.ID,
			"sport":     string(p.Sport),
			"team_id":   p.TeamID,
			"team_name": p.TeamName,
			"name":      p.Name,
			"role":      p.Role,
			"price":     p.Price,
			"image_url": p.ImageURL,
		})
		if err != nil {
			return fmt.Errorf("bind seed player %s query: %w", p.ID, err)
		}
		sqlQuery = tx.Rebind(sqlQuery)
		if _, err := tx.ExecContext(ctx, sqlQuery, args...); err != nil {
			return fmt.Errorf("seed player %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	return nil
}
