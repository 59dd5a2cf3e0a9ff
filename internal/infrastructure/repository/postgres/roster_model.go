package postgres

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

type rosterTableModel struct {
	ID          string     `db:"id"`
	UserID      string     `db:"user_id"`
	MatchID     string     `db:"match_id"`
	Sport       string     `db:"sport"`
	Name        string     `db:"name"`
	Status      string     `db:"status"`
	Picks       []byte     `db:"picks"`
	TotalPoints float64    `db:"total_points"`
	SubmittedAt *time.Time `db:"submitted_at"`
	LockedAt    *time.Time `db:"locked_at"`
	ScoredAt    *time.Time `db:"scored_at"`
	Version     int64      `db:"version"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

var rosterSelectColumns = []string{
	"id",
	"user_id",
	"match_id",
	"sport",
	"name",
	"status",
	"picks",
	"total_points",
	"submitted_at",
	"locked_at",
	"scored_at",
	"version",
	"created_at",
	"updated_at",
}

type pickDoc struct {
	PlayerID      string          `json:"player_id"`
	PlayerName    string          `json:"player_name"`
	TeamID        string          `json:"team_id"`
	Price         decimal.Decimal `json:"price"`
	IsCaptain     bool            `json:"is_captain,omitempty"`
	IsViceCaptain bool            `json:"is_vice_captain,omitempty"`
	Points        float64         `json:"points,omitempty"`
	AddedAt       time.Time       `json:"added_at"`
}

func rosterToRow(rr roster.Roster) (rosterTableModel, error) {
	docs := make([]pickDoc, 0, len(rr.Picks))
	for _, pick := range rr.Picks {
		docs = append(docs, pickDoc{
			PlayerID:      pick.PlayerID,
			PlayerName:    pick.PlayerName,
			TeamID:        pick.TeamID,
			Price:         pick.Price,
			IsCaptain:     pick.IsCaptain,
			IsViceCaptain: pick.IsViceCaptain,
			Points:        pick.Points,
			AddedAt:       pick.AddedAt,
		})
	}
	picks, err := sonic.Marshal(docs)
	if err != nil {
		return rosterTableModel{}, fmt.Errorf("marshal roster %s picks: %w", rr.ID, err)
	}

	return rosterTableModel{
		ID:          rr.ID,
		UserID:      rr.UserID,
		MatchID:     rr.MatchID,
		Sport:       string(rr.Sport),
		Name:        rr.Name,
		Status:      string(rr.Status),
		Picks:       picks,
		TotalPoints: rr.TotalPoints,
		SubmittedAt: rr.SubmittedAt,
		LockedAt:    rr.LockedAt,
		ScoredAt:    rr.ScoredAt,
		Version:     rr.Version,
		CreatedAt:   rr.CreatedAt,
		UpdatedAt:   rr.UpdatedAt,
	}, nil
}

func rosterFromRow(row rosterTableModel) (roster.Roster, error) {
	var docs []pickDoc
	if len(row.Picks) > 0 {
		if err := sonic.Unmarshal(row.Picks, &docs); err != nil {
			return roster.Roster{}, fmt.Errorf("unmarshal roster %s picks: %w", row.ID, err)
		}
	}

	picks := make([]roster.Pick, 0, len(docs))
	for _, doc := range docs {
		picks = append(picks, roster.Pick{
			PlayerID:      doc.PlayerID,
			PlayerName:    doc.PlayerName,
			TeamID:        doc.TeamID,
			Price:         doc.Price,
			IsCaptain:     doc.IsCaptain,
			IsViceCaptain: doc.IsViceCaptain,
			Points:        doc.Points,
			AddedAt:       doc.AddedAt,
		})
	}

	return roster.Roster{
		ID:          row.ID,
		UserID:      row.UserID,
		MatchID:     row.MatchID,
		Sport:       sport.Sport(row.Sport),
		Name:        row.Name,
		Status:      roster.Status(row.Status),
		Picks:       picks,
		TotalPoints: row.TotalPoints,
		SubmittedAt: row.SubmittedAt,
		LockedAt:    row.LockedAt,
		ScoredAt:    row.ScoredAt,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}
