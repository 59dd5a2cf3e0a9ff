package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
)

type RosterRepository struct {
	mu          sync.RWMutex
	items       map[string]roster.Roster
	byUserMatch map[string]string
}

func NewRosterRepository() *RosterRepository {
	return &RosterRepository{
		items:       make(map[string]roster.Roster),
		byUserMatch: make(map[string]string),
	}
}

func (r *RosterRepository) Get(_ context.Context, rosterID string) (roster.Roster, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.items[rosterID]
	if !ok {
		return roster.Roster{}, false, nil
	}

	return cloneRoster(stored), true, nil
}

func (r *RosterRepository) GetByUserAndMatch(_ context.Context, userID, matchID string) (roster.Roster, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserMatch[rosterKey(userID, matchID)]
	if !ok {
		return roster.Roster{}, false, nil
	}

	return cloneRoster(r.items[id]), true, nil
}

func (r *RosterRepository) Create(_ context.Context, rr roster.Roster) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rosterKey(rr.UserID, rr.MatchID)
	if _, exists := r.byUserMatch[key]; exists {
		return roster.ErrDuplicateRoster
	}
	if _, exists := r.items[rr.ID]; exists {
		return roster.ErrDuplicateRoster
	}

	r.items[rr.ID] = cloneRoster(rr)
	r.byUserMatch[key] = rr.ID
	return nil
}

func (r *RosterRepository) Update(_ context.Context, rr roster.Roster) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[rr.ID]
	if !ok || stored.Version != rr.Version {
		return roster.ErrVersionConflict
	}

	next := cloneRoster(rr)
	next.Version++
	r.items[rr.ID] = next
	return nil
}

func (r *RosterRepository) ListByMatch(_ context.Context, matchID string) ([]roster.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]roster.Roster, 0)
	for _, stored := range r.items {
		if stored.MatchID == matchID {
			out = append(out, cloneRoster(stored))
		}
	}
	sortRosters(out)

	return out, nil
}

func (r *RosterRepository) ListByUser(_ context.Context, userID string) ([]roster.Roster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]roster.Roster, 0)
	for _, stored := range r.items {
		if stored.UserID == userID {
			out = append(out, cloneRoster(stored))
		}
	}
	sortRosters(out)

	return out, nil
}

func sortRosters(out []roster.Roster) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func rosterKey(userID, matchID string) string {
	return userID + "::" + matchID
}

func cloneRoster(rr roster.Roster) roster.Roster {
	copied := rr
	copied.Picks = append([]roster.Pick(nil), rr.Picks...)
	copied.SubmittedAt = cloneTime(rr.SubmittedAt)
	copied.LockedAt = cloneTime(rr.LockedAt)
	copied.ScoredAt = cloneTime(rr.ScoredAt)
	return copied
}
