package player

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

// Player is a selectable athlete in the roster-building pool. Price is the
// credit cost charged against the roster budget at pick time.
type Player struct {
	ID       string
	Sport    sport.Sport
	TeamID   string
	TeamName string
	Name     string
	Role     string
	Price    decimal.Decimal
	ImageURL string
}

func (p Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player id is required")
	}
	if !p.Sport.Valid() {
		return fmt.Errorf("%w: %s", sport.ErrUnknownSport, p.Sport)
	}
	if p.TeamID == "" {
		return fmt.Errorf("player team id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if p.Role == "" {
		return fmt.Errorf("player role is required")
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("player price must be greater than zero")
	}

	return nil
}
