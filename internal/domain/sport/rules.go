package sport

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rules stores the roster and scoring parameters for one contest. It is
// carried on the contest itself rather than read from package constants,
// so two contests over the same match can score differently.
type Rules struct {
	Sport                 Sport
	SquadSize             int
	BudgetCap             decimal.Decimal
	CaptainMultiplier     float64
	ViceCaptainMultiplier float64
	Weights               map[Stat]float64
}

// DefaultRules returns the platform defaults for a sport: an 11-player
// squad on a 100-credit budget for cricket and football, smaller squads
// for kabaddi and basketball, with the stock weight tables.
func DefaultRules(s Sport) (Rules, error) {
	weights, ok := defaultWeights[s]
	if !ok {
		return Rules{}, fmt.Errorf("%w: %s", ErrUnknownSport, s)
	}

	rules := Rules{
		Sport:                 s,
		SquadSize:             defaultSquadSizes[s],
		BudgetCap:             decimal.NewFromInt(100),
		CaptainMultiplier:     2.0,
		ViceCaptainMultiplier: 1.5,
		Weights:               make(map[Stat]float64, len(weights)),
	}
	for stat, weight := range weights {
		rules.Weights[stat] = weight
	}
	return rules, nil
}

func (r Rules) Validate() error {
	if !r.Sport.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownSport, r.Sport)
	}
	if r.SquadSize < 1 || r.SquadSize > 25 {
		return fmt.Errorf("squad size must be between 1 and 25, got %d", r.SquadSize)
	}
	if !r.BudgetCap.IsPositive() {
		return fmt.Errorf("budget cap must be positive, got %s", r.BudgetCap)
	}
	if r.CaptainMultiplier < 1 || r.ViceCaptainMultiplier < 1 {
		return fmt.Errorf("multipliers must be at least 1")
	}
	if len(r.Weights) == 0 {
		return fmt.Errorf("scoring weights are required")
	}

	return nil
}

var defaultSquadSizes = map[Sport]int{
	Cricket:    11,
	Football:   11,
	Kabaddi:    7,
	Basketball: 8,
}

var defaultWeights = map[Sport]map[Stat]float64{
	Cricket: {
		StatRuns:      1,
		StatWickets:   10,
		StatCatches:   10,
		StatStumpings: 10,
		StatRunOuts:   6,
	},
	Football: {
		StatGoals:       10,
		StatAssists:     6,
		StatCleanSheets: 4,
		StatYellowCards: -1,
		StatRedCards:    -3,
	},
	Kabaddi: {
		StatRaidPoints:   1,
		StatTacklePoints: 1,
		StatAllOuts:      2,
	},
	Basketball: {
		StatFieldPoints: 0.5,
		StatRebounds:    1,
		StatAssists:     1,
		StatSteals:      2,
		StatBlocks:      2,
		StatTurnovers:   -1,
	},
}
