package roster

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

var (
	ErrRosterLocked      = errors.New("roster can no longer be modified")
	ErrDuplicatePlayer   = errors.New("player already in roster")
	ErrBudgetExceeded    = errors.New("roster budget exceeded")
	ErrSquadFull         = errors.New("roster squad is full")
	ErrPlayerNotInRoster = errors.New("player not in roster")
	ErrIncompleteRoster  = errors.New("roster is incomplete")
	ErrInvalidStatus     = errors.New("operation not allowed for current roster status")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusLocked    Status = "locked"
	StatusScored    Status = "scored"
)

// Pick is one selected player. Price is snapshotted when the player is
// added and never tracks later market moves.
type Pick struct {
	PlayerID      string
	PlayerName    string
	TeamID        string
	Price         decimal.Decimal
	IsCaptain     bool
	IsViceCaptain bool
	Points        float64
	AddedAt       time.Time
}

// Roster is one user's squad for one match. Derived values (team value,
// completeness, remaining budget) are computed from the picks on read,
// never stored.
type Roster struct {
	ID          string
	UserID      string
	MatchID     string
	Sport       sport.Sport
	Name        string
	Status      Status
	Picks       []Pick
	TotalPoints float64
	SubmittedAt *time.Time
	LockedAt    *time.Time
	ScoredAt    *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, userID, matchID string, s sport.Sport, name string, now time.Time) Roster {
	return Roster{
		ID:        id,
		UserID:    userID,
		MatchID:   matchID,
		Sport:     s,
		Name:      name,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r Roster) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("roster id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("roster user id is required")
	}
	if r.MatchID == "" {
		return fmt.Errorf("roster match id is required")
	}
	if !r.Sport.Valid() {
		return fmt.Errorf("%w: %s", sport.ErrUnknownSport, r.Sport)
	}

	return nil
}

// TeamValue sums the snapshotted pick prices.
func (r Roster) TeamValue() decimal.Decimal {
	total := decimal.Zero
	for _, pick := range r.Picks {
		total = total.Add(pick.Price)
	}
	return total
}

func (r Roster) RemainingBudget(cap decimal.Decimal) decimal.Decimal {
	return cap.Sub(r.TeamValue())
}

func (r Roster) Captain() (Pick, bool) {
	for _, pick := range r.Picks {
		if pick.IsCaptain {
			return pick, true
		}
	}
	return Pick{}, false
}

func (r Roster) ViceCaptain() (Pick, bool) {
	for _, pick := range r.Picks {
		if pick.IsViceCaptain {
			return pick, true
		}
	}
	return Pick{}, false
}

// IsComplete requires the exact squad size plus both captain roles set.
func (r Roster) IsComplete(rules sport.Rules) bool {
	if len(r.Picks) != rules.SquadSize {
		return false
	}
	_, hasCaptain := r.Captain()
	_, hasVice := r.ViceCaptain()
	return hasCaptain && hasVice
}

func (r Roster) hasPlayer(playerID string) bool {
	for _, pick := range r.Picks {
		if pick.PlayerID == playerID {
			return true
		}
	}
	return false
}

func (r Roster) cloned() Roster {
	next := r
	next.Picks = append([]Pick(nil), r.Picks...)
	return next
}

// WithPlayer adds a pick with its price snapshot.
func (r Roster) WithPlayer(pick Pick, rules sport.Rules, now time.Time) (Roster, error) {
	if r.Status != StatusDraft {
		return Roster{}, fmt.Errorf("%w: roster is %s", ErrRosterLocked, r.Status)
	}
	if r.hasPlayer(pick.PlayerID) {
		return Roster{}, fmt.Errorf("%w: %s", ErrDuplicatePlayer, pick.PlayerID)
	}
	if len(r.Picks) >= rules.SquadSize {
		return Roster{}, fmt.Errorf("%w: squad size is %d", ErrSquadFull, rules.SquadSize)
	}
	if value := r.TeamValue().Add(pick.Price); value.GreaterThan(rules.BudgetCap) {
		return Roster{}, fmt.Errorf("%w: %s of %s", ErrBudgetExceeded, value, rules.BudgetCap)
	}

	next := r.cloned()
	pick.IsCaptain = false
	pick.IsViceCaptain = false
	pick.Points = 0
	pick.AddedAt = now
	next.Picks = append(next.Picks, pick)
	next.UpdatedAt = now
	return next, nil
}

// WithoutPlayer removes a pick.
func (r Roster) WithoutPlayer(playerID string, now time.Time) (Roster, error) {
	if r.Status != StatusDraft {
		return Roster{}, fmt.Errorf("%w: roster is %s", ErrRosterLocked, r.Status)
	}

	next := r.cloned()
	for i, pick := range next.Picks {
		if pick.PlayerID == playerID {
			next.Picks = append(next.Picks[:i], next.Picks[i+1:]...)
			next.UpdatedAt = now
			return next, nil
		}
	}
	return Roster{}, fmt.Errorf("%w: %s", ErrPlayerNotInRoster, playerID)
}

// WithCaptain moves the captain armband. The previous captain loses the
// flag; a player cannot hold both armbands, so the new captain also
// sheds any vice flag.
func (r Roster) WithCaptain(playerID string, now time.Time) (Roster, error) {
	return r.withArmband(playerID, now, true)
}

// WithViceCaptain moves the vice-captain armband.
func (r Roster) WithViceCaptain(playerID string, now time.Time) (Roster, error) {
	return r.withArmband(playerID, now, false)
}

func (r Roster) withArmband(playerID string, now time.Time, captain bool) (Roster, error) {
	if r.Status != StatusDraft {
		return Roster{}, fmt.Errorf("%w: roster is %s", ErrRosterLocked, r.Status)
	}
	if !r.hasPlayer(playerID) {
		return Roster{}, fmt.Errorf("%w: %s", ErrPlayerNotInRoster, playerID)
	}

	next := r.cloned()
	for i := range next.Picks {
		target := next.Picks[i].PlayerID == playerID
		if captain {
			next.Picks[i].IsCaptain = target
			if target {
				next.Picks[i].IsViceCaptain = false
			}
		} else {
			next.Picks[i].IsViceCaptain = target
			if target {
				next.Picks[i].IsCaptain = false
			}
		}
	}
	next.UpdatedAt = now
	return next, nil
}

// Submitted finalizes a draft.
func (r Roster) Submitted(rules sport.Rules, now time.Time) (Roster, error) {
	if r.Status != StatusDraft {
		return Roster{}, fmt.Errorf("%w: roster is %s", ErrRosterLocked, r.Status)
	}
	if !r.IsComplete(rules) {
		return Roster{}, fmt.Errorf("%w: %d of %d picks, captain and vice-captain required", ErrIncompleteRoster, len(r.Picks), rules.SquadSize)
	}
	if value := r.TeamValue(); value.GreaterThan(rules.BudgetCap) {
		return Roster{}, fmt.Errorf("%w: %s of %s", ErrBudgetExceeded, value, rules.BudgetCap)
	}

	next := r.cloned()
	next.Status = StatusSubmitted
	next.SubmittedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Locked freezes a submitted roster at match start.
func (r Roster) Locked(now time.Time) (Roster, error) {
	if r.Status != StatusSubmitted {
		return Roster{}, fmt.Errorf("%w: lock requires submitted, found %s", ErrInvalidStatus, r.Status)
	}

	next := r.cloned()
	next.Status = StatusLocked
	next.LockedAt = &now
	next.UpdatedAt = now
	return next, nil
}
