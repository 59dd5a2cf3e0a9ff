package match

import "context"

// Repository exposes match catalog operations.
type Repository interface {
	Get(ctx context.Context, matchID string) (Match, bool, error)
	List(ctx context.Context) ([]Match, error)
	ListUpcoming(ctx context.Context, limit int) ([]Match, error)
	Upsert(ctx context.Context, m Match) error
}
