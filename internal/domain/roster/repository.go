package roster

import (
	"context"
	"errors"
)

var (
	// ErrVersionConflict signals that an optimistic update lost the race
	// and the caller should re-read and retry.
	ErrVersionConflict = errors.New("stale roster version")
	// ErrDuplicateRoster signals the user already has a roster for the
	// match.
	ErrDuplicateRoster = errors.New("roster already exists for this user and match")
)

// Repository persists rosters. One roster per (user, match) is enforced
// at this layer.
type Repository interface {
	Get(ctx context.Context, rosterID string) (Roster, bool, error)
	GetByUserAndMatch(ctx context.Context, userID, matchID string) (Roster, bool, error)
	Create(ctx context.Context, r Roster) error
	Update(ctx context.Context, r Roster) error
	ListByMatch(ctx context.Context, matchID string) ([]Roster, error)
	ListByUser(ctx context.Context, userID string) ([]Roster, error)
}
