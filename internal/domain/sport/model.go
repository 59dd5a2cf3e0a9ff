package sport

import "errors"

var ErrUnknownSport = errors.New("unknown sport")

// Sport is the closed set of games the platform runs contests for.
// Scoring dispatches through the per-sport weight table, so adding a
// sport is a data change here, not a branch at every call site.
type Sport string

const (
	Cricket    Sport = "cricket"
	Football   Sport = "football"
	Kabaddi    Sport = "kabaddi"
	Basketball Sport = "basketball"
)

var All = map[Sport]struct{}{
	Cricket:    {},
	Football:   {},
	Kabaddi:    {},
	Basketball: {},
}

func (s Sport) Valid() bool {
	_, ok := All[s]
	return ok
}

// Stat names one countable performance event in a match.
type Stat string

const (
	StatRuns      Stat = "runs"
	StatWickets   Stat = "wickets"
	StatCatches   Stat = "catches"
	StatStumpings Stat = "stumpings"
	StatRunOuts   Stat = "run_outs"

	StatGoals       Stat = "goals"
	StatAssists     Stat = "assists"
	StatCleanSheets Stat = "clean_sheets"
	StatYellowCards Stat = "yellow_cards"
	StatRedCards    Stat = "red_cards"

	StatRaidPoints   Stat = "raid_points"
	StatTacklePoints Stat = "tackle_points"
	StatAllOuts      Stat = "all_outs"

	StatFieldPoints Stat = "field_points"
	StatRebounds    Stat = "rebounds"
	StatSteals      Stat = "steals"
	StatBlocks      Stat = "blocks"
	StatTurnovers   Stat = "turnovers"
)
