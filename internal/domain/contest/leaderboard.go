package contest

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Leaderboard re-ranks participants by points descending, breaking ties
// in favour of the earlier entrant, and assigns prizes from the
// distribution. The input slice is untouched; identical input points
// always produce identical output.
func Leaderboard(participants []Participant, distribution []PrizeSlot) ([]Participant, Stats) {
	ranked := append([]Participant(nil), participants...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return ranked[i].EntryTime.Before(ranked[j].EntryTime)
	})

	prizeByRank := make(map[int]decimal.Decimal, len(distribution))
	for _, slot := range distribution {
		prizeByRank[slot.Rank] = slot.Prize
	}

	for i := range ranked {
		ranked[i].Rank = i + 1
		prize, ok := prizeByRank[ranked[i].Rank]
		if !ok {
			prize = decimal.Zero
		}
		ranked[i].Prize = prize
		ranked[i].IsWinner = prize.IsPositive()
	}

	var stats Stats
	if len(ranked) > 0 {
		stats.HighestPoints = ranked[0].Points
		stats.LowestPoints = ranked[len(ranked)-1].Points
		total := 0.0
		for _, p := range ranked {
			total += p.Points
		}
		stats.AveragePoints = total / float64(len(ranked))
	}

	return ranked, stats
}
