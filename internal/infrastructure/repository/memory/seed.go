package memory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

const (
	MatchIDLiga1Opener   = "mt-foot-001"
	MatchIDLiga1Derby    = "mt-foot-002"
	MatchIDCricketOpener = "mt-crick-001"
	MatchIDKabaddiOpener = "mt-kab-001"
)

func price(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

func SeedMatches() []match.Match {
	return []match.Match{
		{
			ID:         MatchIDLiga1Opener,
			Sport:      sport.Football,
			HomeTeam:   "Persija Jakarta",
			AwayTeam:   "Persib Bandung",
			HomeTeamID: "idn-persija",
			AwayTeamID: "idn-persib",
			Venue:      "Jakarta International Stadium",
			StartsAt:   time.Date(2026, 2, 14, 19, 0, 0, 0, time.UTC),
			Status:     match.StatusScheduled,
		},
		{
			ID:         MatchIDLiga1Derby,
			Sport:      sport.Football,
			HomeTeam:   "Persebaya Surabaya",
			AwayTeam:   "Bali United",
			HomeTeamID: "idn-persebaya",
			AwayTeamID: "idn-baliutd",
			Venue:      "Gelora Bung Tomo",
			StartsAt:   time.Date(2026, 2, 15, 12, 30, 0, 0, time.UTC),
			Status:     match.StatusScheduled,
		},
		{
			ID:         MatchIDCricketOpener,
			Sport:      sport.Cricket,
			HomeTeam:   "Mumbai Mavericks",
			AwayTeam:   "Chennai Chargers",
			HomeTeamID: "crk-mum",
			AwayTeamID: "crk-che",
			Venue:      "Wankhede Stadium",
			StartsAt:   time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC),
			Status:     match.StatusScheduled,
		},
		{
			ID:         MatchIDKabaddiOpener,
			Sport:      sport.Kabaddi,
			HomeTeam:   "Patna Panthers",
			AwayTeam:   "Jaipur Raiders",
			HomeTeamID: "kab-pat",
			AwayTeamID: "kab-jai",
			Venue:      "Patliputra Sports Complex",
			StartsAt:   time.Date(2026, 2, 22, 15, 30, 0, 0, time.UTC),
			Status:     match.StatusScheduled,
		},
	}
}

func SeedPlayers() []player.Player {
	return []player.Player{
		{ID: "fp-gk-01", Sport: sport.Football, TeamID: "idn-persija", TeamName: "Persija Jakarta", Name: "Andritany Ardhiyasa", Role: "goalkeeper", Price: price(9)},
		{ID: "fp-gk-02", Sport: sport.Football, TeamID: "idn-persib", TeamName: "Persib Bandung", Name: "Teja Paku Alam", Role: "goalkeeper", Price: price(8)},
		{ID: "fp-def-01", Sport: sport.Football, TeamID: "idn-persija", TeamName: "Persija Jakarta", Name: "Hansamu Yama", Role: "defender", Price: price(9)},
		{ID: "fp-def-02", Sport: sport.Football, TeamID: "idn-persib", TeamName: "Persib Bandung", Name: "Nick Kuipers", Role: "defender", Price: price(9)},
		{ID: "fp-def-03", Sport: sport.Football, TeamID: "idn-persebaya", TeamName: "Persebaya Surabaya", Name: "Dusan Stevanovic", Role: "defender", Price: price(8)},
		{ID: "fp-def-04", Sport: sport.Football, TeamID: "idn-baliutd", TeamName: "Bali United", Name: "Ricky Fajrin", Role: "defender", Price: price(8)},
		{ID: "fp-mid-01", Sport: sport.Football, TeamID: "idn-persija", TeamName: "Persija Jakarta", Name: "Maciej Gajos", Role: "midfielder", Price: price(10)},
		{ID: "fp-mid-02", Sport: sport.Football, TeamID: "idn-persib", TeamName: "Persib Bandung", Name: "Marc Klok", Role: "midfielder", Price: price(10)},
		{ID: "fp-mid-03", Sport: sport.Football, TeamID: "idn-persebaya", TeamName: "Persebaya Surabaya", Name: "Bruno Moreira", Role: "midfielder", Price: price(9)},
		{ID: "fp-mid-04", Sport: sport.Football, TeamID: "idn-baliutd", TeamName: "Bali United", Name: "Eber Bessa", Role: "midfielder", Price: price(10)},
		{ID: "fp-fwd-01", Sport: sport.Football, TeamID: "idn-persija", TeamName: "Persija Jakarta", Name: "Gustavo Almeida", Role: "forward", Price: price(11)},
		{ID: "fp-fwd-02", Sport: sport.Football, TeamID: "idn-persib", TeamName: "Persib Bandung", Name: "David da Silva", Role: "forward", Price: price(11)},
		{ID: "fp-fwd-03", Sport: sport.Football, TeamID: "idn-persebaya", TeamName: "Persebaya Surabaya", Name: "Paulo Henrique", Role: "forward", Price: price(10)},
		{ID: "fp-mid-05", Sport: sport.Football, TeamID: "idn-baliutd", TeamName: "Bali United", Name: "Mitsuru Maruoka", Role: "midfielder", Price: price(9)},
		{ID: "fp-def-05", Sport: sport.Football, TeamID: "idn-persebaya", TeamName: "Persebaya Surabaya", Name: "Arief Catur", Role: "defender", Price: price(7)},
		{ID: "fp-mid-06", Sport: sport.Football, TeamID: "idn-persib", TeamName: "Persib Bandung", Name: "Dedi Kusnandar", Role: "midfielder", Price: price(8)},

		{ID: "cp-bat-01", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Arjun Rao", Role: "batsman", Price: price(11)},
		{ID: "cp-bat-02", Sport: sport.Cricket, TeamID: "crk-che", TeamName: "Chennai Chargers", Name: "Vikram Iyer", Role: "batsman", Price: price(10)},
		{ID: "cp-bat-03", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Sameer Kulkarni", Role: "batsman", Price: price(9)},
		{ID: "cp-bat-04", Sport: sport.Cricket, TeamID: "crk-che", TeamName: "Chennai Chargers", Name: "Pranav Menon", Role: "batsman", Price: price(9)},
		{ID: "cp-bwl-01", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Ishan Patel", Role: "bowler", Price: price(10)},
		{ID: "cp-bwl-02", Sport: sport.Cricket, TeamID: "crk-che", TeamName: "Chennai Chargers", Name: "Karthik Nair", Role: "bowler", Price: price(9)},
		{ID: "cp-bwl-03", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Rohan Shetty", Role: "bowler", Price: price(8)},
		{ID: "cp-ar-01", Sport: sport.Cricket, TeamID: "crk-che", TeamName: "Chennai Chargers", Name: "Devraj Singh", Role: "all-rounder", Price: price(11)},
		{ID: "cp-ar-02", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Nikhil Bhat", Role: "all-rounder", Price: price(10)},
		{ID: "cp-wk-01", Sport: sport.Cricket, TeamID: "crk-che", TeamName: "Chennai Chargers", Name: "Aditya Joshi", Role: "wicket-keeper", Price: price(9)},
		{ID: "cp-wk-02", Sport: sport.Cricket, TeamID: "crk-mum", TeamName: "Mumbai Mavericks", Name: "Harsha Reddy", Role: "wicket-keeper", Price: price(8)},

		{ID: "kp-rd-01", Sport: sport.Kabaddi, TeamID: "kab-pat", TeamName: "Patna Panthers", Name: "Pardeep Kumar", Role: "raider", Price: price(12)},
		{ID: "kp-rd-02", Sport: sport.Kabaddi, TeamID: "kab-jai", TeamName: "Jaipur Raiders", Name: "Arjun Deshwal", Role: "raider", Price: price(11)},
		{ID: "kp-df-01", Sport: sport.Kabaddi, TeamID: "kab-pat", TeamName: "Patna Panthers", Name: "Neeraj Chauhan", Role: "defender", Price: price(9)},
		{ID: "kp-df-02", Sport: sport.Kabaddi, TeamID: "kab-jai", TeamName: "Jaipur Raiders", Name: "Sunil Yadav", Role: "defender", Price: price(9)},
		{ID: "kp-ar-01", Sport: sport.Kabaddi, TeamID: "kab-pat", TeamName: "Patna Panthers", Name: "Manjeet Dahiya", Role: "all-rounder", Price: price(10)},
		{ID: "kp-ar-02", Sport: sport.Kabaddi, TeamID: "kab-jai", TeamName: "Jaipur Raiders", Name: "Vikash Rathi", Role: "all-rounder", Price: price(10)},
		{ID: "kp-df-03", Sport: sport.Kabaddi, TeamID: "kab-pat", TeamName: "Patna Panthers", Name: "Amit Malik", Role: "defender", Price: price(8)},
	}
}
