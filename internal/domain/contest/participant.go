package contest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Participant is one paid entry: a user fielding one roster in one
// contest. Rank, prize, and winner flags are leaderboard output; the
// payout reference is stamped when settlement pays the prize so a
// replayed settlement never pays twice.
type Participant struct {
	ID        string
	ContestID string
	UserID    string
	TeamID    string
	EntryTime time.Time
	Points    float64
	Rank      int
	Prize     decimal.Decimal
	IsWinner  bool
	PayoutRef string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Participant) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("participant id is required")
	}
	if p.ContestID == "" {
		return fmt.Errorf("participant contest id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("participant user id is required")
	}
	if p.TeamID == "" {
		return fmt.Errorf("participant team id is required")
	}
	if p.EntryTime.IsZero() {
		return fmt.Errorf("participant entry time is required")
	}

	return nil
}
