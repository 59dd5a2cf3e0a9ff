package postgres

import (
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

type playerTableModel struct {
	ID       string          `db:"id"`
	Sport    string          `db:"sport"`
	TeamID   string          `db:"team_id"`
	TeamName string          `db:"team_name"`
	Name     string          `db:"name"`
	Role     string          `db:"role"`
	Price    decimal.Decimal `db:"price"`
	ImageURL string          `db:"image_url"`
}

var playerSelectColumns = []string{
	"id",
	"sport",
	"team_id",
	"team_name",
	"name",
	"role",
	"price",
	"image_url",
}

func playerToRow(p player.Player) playerTableModel {
	return playerTableModel{
		ID:       p.ID,
		Sport:    string(p.Sport),
		TeamID:   p.TeamID,
		TeamName: p.TeamName,
		Name:     p.Name,
		Role:     p.Role,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}
}

func playerFromRow(row playerTableModel) player.Player {
	return player.Player{
		ID:       row.ID,
		Sport:    sport.Sport(row.Sport),
		TeamID:   row.TeamID,
		TeamName: row.TeamName,
		Name:     row.Name,
		Role:     row.Role,
		Price:    row.Price,
		ImageURL: row.ImageURL,
	}
}
