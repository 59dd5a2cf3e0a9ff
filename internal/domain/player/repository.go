package player

import (
	"context"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

// Repository describes player catalog persistence needs from use cases.
type Repository interface {
	Get(ctx context.Context, playerID string) (Player, bool, error)
	ListBySport(ctx context.Context, s sport.Sport) ([]Player, error)
	GetByIDs(ctx context.Context, playerIDs []string) ([]Player, error)
	Upsert(ctx context.Context, p Player) error
}
