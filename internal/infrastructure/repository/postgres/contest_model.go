package postgres

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

type contestTableModel struct {
	ID                   string          `db:"id"`
	Name                 string          `db:"name"`
	Description          string          `db:"description"`
	MatchID              string          `db:"match_id"`
	Sport                string          `db:"sport"`
	Status               string          `db:"status"`
	EntryType            string          `db:"entry_type"`
	EntryFee             decimal.Decimal `db:"entry_fee"`
	PrizePool            decimal.Decimal `db:"prize_pool"`
	TotalSpots           int             `db:"total_spots"`
	FilledSpots          int             `db:"filled_spots"`
	PrizeDistribution    []byte          `db:"prize_distribution"`
	Rules                []byte          `db:"rules"`
	RegistrationDeadline time.Time       `db:"registration_deadline"`
	Stats                []byte          `db:"stats"`
	CreatedBy            string          `db:"created_by"`
	SettledAt            *time.Time      `db:"settled_at"`
	CancelledAt          *time.Time      `db:"cancelled_at"`
	Version              int64           `db:"version"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

var contestSelectColumns = []string{
	"id",
	"name",
	"description",
	"match_id",
	"sport",
	"status",
	"entry_type",
	"entry_fee",
	"prize_pool",
	"total_spots",
	"filled_spots",
	"prize_distribution",
	"rules",
	"registration_deadline",
	"stats",
	"created_by",
	"settled_at",
	"cancelled_at",
	"version",
	"created_at",
	"updated_at",
}

type participantTableModel struct {
	ID        string          `db:"id"`
	ContestID string          `db:"contest_id"`
	UserID    string          `db:"user_id"`
	TeamID    string          `db:"team_id"`
	EntryTime time.Time       `db:"entry_time"`
	Points    float64         `db:"points"`
	Rank      int             `db:"rank"`
	Prize     decimal.Decimal `db:"prize"`
	IsWinner  bool            `db:"is_winner"`
	PayoutRef string          `db:"payout_ref"`
	Version   int64           `db:"version"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

var participantSelectColumns = []string{
	"id",
	"contest_id",
	"user_id",
	"team_id",
	"entry_time",
	"points",
	"rank",
	"prize",
	"is_winner",
	"payout_ref",
	"version",
	"created_at",
	"updated_at",
}

// prizeSlotDoc, rulesDoc, and statsDoc are the JSONB shapes. The domain
// structs stay tag free so the wire format can move without touching
// them.
type prizeSlotDoc struct {
	Rank       int             `json:"rank"`
	Prize      decimal.Decimal `json:"prize"`
	Percentage float64         `json:"percentage,omitempty"`
}

type rulesDoc struct {
	Sport                 string             `json:"sport"`
	SquadSize             int                `json:"squad_size"`
	BudgetCap             decimal.Decimal    `json:"budget_cap"`
	CaptainMultiplier     float64            `json:"captain_multiplier"`
	ViceCaptainMultiplier float64            `json:"vice_captain_multiplier"`
	Weights               map[string]float64 `json:"weights,omitempty"`
}

type statsDoc struct {
	AveragePoints float64 `json:"average_points"`
	HighestPoints float64 `json:"highest_points"`
	LowestPoints  float64 `json:"lowest_points"`
}

func contestToRow(c contest.Contest) (contestTableModel, error) {
	slots := make([]prizeSlotDoc, 0, len(c.PrizeDistribution))
	for _, slot := range c.PrizeDistribution {
		slots = append(slots, prizeSlotDoc{
			Rank:       slot.Rank,
			Prize:      slot.Prize,
			Percentage: slot.Percentage,
		})
	}
	distribution, err := sonic.Marshal(slots)
	if err != nil {
		return contestTableModel{}, fmt.Errorf("marshal contest %s prize distribution: %w", c.ID, err)
	}

	weights := make(map[string]float64, len(c.Rules.Weights))
	for stat, weight := range c.Rules.Weights {
		weights[string(stat)] = weight
	}
	rules, err := sonic.Marshal(rulesDoc{
		Sport:                 string(c.Rules.Sport),
		SquadSize:             c.Rules.SquadSize,
		BudgetCap:             c.Rules.BudgetCap,
		CaptainMultiplier:     c.Rules.CaptainMultiplier,
		ViceCaptainMultiplier: c.Rules.ViceCaptainMultiplier,
		Weights:               weights,
	})
	if err != nil {
		return contestTableModel{}, fmt.Errorf("marshal contest %s rules: %w", c.ID, err)
	}

	stats, err := sonic.Marshal(statsDoc{
		AveragePoints: c.Stats.AveragePoints,
		HighestPoints: c.Stats.HighestPoints,
		LowestPoints:  c.Stats.LowestPoints,
	})
	if err != nil {
		return contestTableModel{}, fmt.Errorf("marshal contest %s stats: %w", c.ID, err)
	}

	return contestTableModel{
		ID:                   c.ID,
		Name:                 c.Name,
		Description:          c.Description,
		MatchID:              c.MatchID,
		Sport:                string(c.Sport),
		Status:               string(c.Status),
		EntryType:            string(c.EntryType),
		EntryFee:             c.EntryFee,
		PrizePool:            c.PrizePool,
		TotalSpots:           c.TotalSpots,
		FilledSpots:          c.FilledSpots,
		PrizeDistribution:    distribution,
		Rules:                rules,
		RegistrationDeadline: c.RegistrationDeadline,
		Stats:                stats,
		CreatedBy:            c.CreatedBy,
		SettledAt:            c.SettledAt,
		CancelledAt:          c.CancelledAt,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}, nil
}

func contestFromRow(row contestTableModel) (contest.Contest, error) {
	var slots []prizeSlotDoc
	if len(row.PrizeDistribution) > 0 {
		if err := sonic.Unmarshal(row.PrizeDistribution, &slots); err != nil {
			return contest.Contest{}, fmt.Errorf("unmarshal contest %s prize distribution: %w", row.ID, err)
		}
	}
	distribution := make([]contest.PrizeSlot, 0, len(slots))
	for _, slot := range slots {
		distribution = append(distribution, contest.PrizeSlot{
			Rank:       slot.Rank,
			Prize:      slot.Prize,
			Percentage: slot.Percentage,
		})
	}

	var rules rulesDoc
	if len(row.Rules) > 0 {
		if err := sonic.Unmarshal(row.Rules, &rules); err != nil {
			return contest.Contest{}, fmt.Errorf("unmarshal contest %s rules: %w", row.ID, err)
		}
	}
	weights := make(map[sport.Stat]float64, len(rules.Weights))
	for stat, weight := range rules.Weights {
		weights[sport.Stat(stat)] = weight
	}

	var stats statsDoc
	if len(row.Stats) > 0 {
		if err := sonic.Unmarshal(row.Stats, &stats); err != nil {
			return contest.Contest{}, fmt.Errorf("unmarshal contest %s stats: %w", row.ID, err)
		}
	}

	return contest.Contest{
		ID:                row.ID,
		Name:              row.Name,
		Description:       row.Description,
		MatchID:           row.MatchID,
		Sport:             sport.Sport(row.Sport),
		Status:            contest.Status(row.Status),
		EntryType:         contest.EntryType(row.EntryType),
		EntryFee:          row.EntryFee,
		PrizePool:         row.PrizePool,
		TotalSpots:        row.TotalSpots,
		FilledSpots:       row.FilledSpots,
		PrizeDistribution: distribution,
		Rules: sport.Rules{
			Sport:                 sport.Sport(rules.Sport),
			SquadSize:             rules.SquadSize,
			BudgetCap:             rules.BudgetCap,
			CaptainMultiplier:     rules.CaptainMultiplier,
			ViceCaptainMultiplier: rules.ViceCaptainMultiplier,
			Weights:               weights,
		},
		RegistrationDeadline: row.RegistrationDeadline,
		Stats: contest.Stats{
			AveragePoints: stats.AveragePoints,
			HighestPoints: stats.HighestPoints,
			LowestPoints:  stats.LowestPoints,
		},
		CreatedBy:   row.CreatedBy,
		SettledAt:   row.SettledAt,
		CancelledAt: row.CancelledAt,
		Version:     row.Version,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func participantToRow(p contest.Participant) participantTableModel {
	return participantTableModel{
		ID:        p.ID,
		ContestID: p.ContestID,
		UserID:    p.UserID,
		TeamID:    p.TeamID,
		EntryTime: p.EntryTime,
		Points:    p.Points,
		Rank:      p.Rank,
		Prize:     p.Prize,
		IsWinner:  p.IsWinner,
		PayoutRef: p.PayoutRef,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func participantFromRow(row participantTableModel) contest.Participant {
	return contest.Participant{
		ID:        row.ID,
		ContestID: row.ContestID,
		UserID:    row.UserID,
		TeamID:    row.TeamID,
		EntryTime: row.EntryTime,
		Points:    row.Points,
		Rank:      row.Rank,
		Prize:     row.Prize,
		IsWinner:  row.IsWinner,
		PayoutRef: row.PayoutRef,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
