package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier is told what changed after each successful state transition.
// Delivery is someone else's problem; implementations may push, enqueue,
// or drop the report.
type Notifier interface {
	WalletChanged(ctx context.Context, userID string, balance decimal.Decimal)
	ContestChanged(ctx context.Context, contestID string, filledSpots int)
	LeaderboardChanged(ctx context.Context, contestID string)
	RosterChanged(ctx context.Context, rosterID, status string)
}

// Nop drops every report. Used in tests and wherever no channel is
// configured.
type Nop struct{}

func (Nop) WalletChanged(context.Context, string, decimal.Decimal) {}
func (Nop) ContestChanged(context.Context, string, int)            {}
func (Nop) LeaderboardChanged(context.Context, string)             {}
func (Nop) RosterChanged(context.Context, string, string)          {}

// Log writes each report as a structured log line carrying a unique
// event id, standing in for the real-time push channel.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) WalletChanged(ctx context.Context, userID string, balance decimal.Decimal) {
	l.logger.InfoContext(ctx, "wallet changed",
		"event_id", uuid.NewString(),
		"user_id", userID,
		"balance", balance.String(),
	)
}

func (l *Log) ContestChanged(ctx context.Context, contestID string, filledSpots int) {
	l.logger.InfoContext(ctx, "contest changed",
		"event_id", uuid.NewString(),
		"contest_id", contestID,
		"filled_spots", filledSpots,
	)
}

func (l *Log) LeaderboardChanged(ctx context.Context, contestID string) {
	l.logger.InfoContext(ctx, "leaderboard changed",
		"event_id", uuid.NewString(),
		"contest_id", contestID,
	)
}

func (l *Log) RosterChanged(ctx context.Context, rosterID, status string) {
	l.logger.InfoContext(ctx, "roster changed",
		"event_id", uuid.NewString(),
		"roster_id", rosterID,
		"status", status,
	)
}
