package roster

import (
	"fmt"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

// Performance is one player's raw counters for a match.
type Performance map[sport.Stat]float64

// PickPoints computes one pick's contribution: the weighted sum of its
// counters times the armband multiplier.
func PickPoints(pick Pick, perf Performance, rules sport.Rules) float64 {
	raw := 0.0
	for stat, count := range perf {
		raw += rules.Weights[stat] * count
	}

	switch {
	case pick.IsCaptain:
		return raw * rules.CaptainMultiplier
	case pick.IsViceCaptain:
		return raw * rules.ViceCaptainMultiplier
	default:
		return raw
	}
}

// Scored computes every pick's points from the event set and freezes the
// roster. Points are always recomputed from scratch, so rescoring with
// the same events yields the same totals instead of doubling them.
func (r Roster) Scored(events map[string]Performance, rules sport.Rules, now time.Time) (Roster, error) {
	if r.Status != StatusLocked && r.Status != StatusScored {
		return Roster{}, fmt.Errorf("%w: score requires locked, found %s", ErrInvalidStatus, r.Status)
	}

	next := r.cloned()
	total := 0.0
	for i := range next.Picks {
		points := PickPoints(next.Picks[i], events[next.Picks[i].PlayerID], rules)
		next.Picks[i].Points = points
		total += points
	}
	next.TotalPoints = total
	next.Status = StatusScored
	next.ScoredAt = &now
	next.UpdatedAt = now
	return next, nil
}
