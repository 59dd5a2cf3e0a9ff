package postgres

import (
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

type matchTableModel struct {
	ID          string     `db:"id"`
	Sport       string     `db:"sport"`
	HomeTeam    string     `db:"home_team"`
	AwayTeam    string     `db:"away_team"`
	HomeTeamID  string     `db:"home_team_id"`
	AwayTeamID  string     `db:"away_team_id"`
	Venue       string     `db:"venue"`
	StartsAt    time.Time  `db:"starts_at"`
	Status      string     `db:"status"`
	HomeScore   *int       `db:"home_score"`
	AwayScore   *int       `db:"away_score"`
	CompletedAt *time.Time `db:"completed_at"`
}

var matchSelectColumns = []string{
	"id",
	"sport",
	"home_team",
	"away_team",
	"home_team_id",
	"away_team_id",
	"venue",
	"starts_at",
	"status",
	"home_score",
	"away_score",
	"completed_at",
}

func matchToRow(m match.Match) matchTableModel {
	return matchTableModel{
		ID:          m.ID,
		Sport:       string(m.Sport),
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		HomeTeamID:  m.HomeTeamID,
		AwayTeamID:  m.AwayTeamID,
		Venue:       m.Venue,
		StartsAt:    m.StartsAt,
		Status:      m.Status,
		HomeScore:   m.HomeScore,
		AwayScore:   m.AwayScore,
		CompletedAt: m.CompletedAt,
	}
}

func matchFromRow(row matchTableModel) match.Match {
	return match.Match{
		ID:          row.ID,
		Sport:       sport.Sport(row.Sport),
		HomeTeam:    row.HomeTeam,
		AwayTeam:    row.AwayTeam,
		HomeTeamID:  row.HomeTeamID,
		AwayTeamID:  row.AwayTeamID,
		Venue:       row.Venue,
		StartsAt:    row.StartsAt,
		Status:      row.Status,
		HomeScore:   row.HomeScore,
		AwayScore:   row.AwayScore,
		CompletedAt: row.CompletedAt,
	}
}
