package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

// ContestRepository keeps contests and participants behind one mutex so
// admission and leaderboard writes stay atomic.
type ContestRepository struct {
	mu           sync.RWMutex
	contests     map[string]contest.Contest
	participants map[string]map[string]contest.Participant
}

func NewContestRepository() *ContestRepository {
	return &ContestRepository{
		contests:     make(map[string]contest.Contest),
		participants: make(map[string]map[string]contest.Participant),
	}
}

func (r *ContestRepository) GetContest(_ context.Context, contestID string) (contest.Contest, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contests[contestID]
	if !ok {
		return contest.Contest{}, false, nil
	}

	return cloneContest(c), true, nil
}

func (r *ContestRepository) CreateContest(_ context.Context, c contest.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contests[c.ID]; exists {
		return contest.ErrVersionConflict
	}

	r.contests[c.ID] = cloneContest(c)
	r.participants[c.ID] = make(map[string]contest.Participant)
	return nil
}

func (r *ContestRepository) UpdateContest(_ context.Context, c contest.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storeContestLocked(c)
}

func (r *ContestRepository) ListContests(_ context.Context, filter contest.Filter) ([]contest.Contest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]contest.Contest, 0)
	for _, c := range r.contests {
		if filter.MatchID != "" && c.MatchID != filter.MatchID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsContestStatus(filter.Statuses, c.Status) {
			continue
		}
		matched = append(matched, cloneContest(c))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].RegistrationDeadline.Equal(matched[j].RegistrationDeadline) {
			return matched[i].RegistrationDeadline.Before(matched[j].RegistrationDeadline)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []contest.Contest{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

func (r *ContestRepository) GetParticipant(_ context.Context, contestID, userID, teamID string) (contest.Participant, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.participants[contestID] {
		if p.UserID == userID && p.TeamID == teamID {
			return p, true, nil
		}
	}

	return contest.Participant{}, false, nil
}

func (r *ContestRepository) ListParticipants(_ context.Context, contestID string) ([]contest.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contest.Participant, 0, len(r.participants[contestID]))
	for _, p := range r.participants[contestID] {
		out = append(out, p)
	}
	sortParticipants(out)

	return out, nil
}

func (r *ContestRepository) ListParticipantsByUser(_ context.Context, contestID, userID string) ([]contest.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contest.Participant, 0)
	for _, p := range r.participants[contestID] {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sortParticipants(out)

	return out, nil
}

func (r *ContestRepository) ListUserEntries(_ context.Context, userID string) ([]contest.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contest.Participant, 0)
	for _, byID := range r.participants {
		for _, p := range byID {
			if p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.After(out[j].EntryTime)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

func (r *ContestRepository) UpdateParticipant(_ context.Context, p contest.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storeParticipantLocked(p)
}

func (r *ContestRepository) AdmitParticipant(_ context.Context, c contest.Contest, p contest.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.participants[c.ID] {
		if existing.UserID == p.UserID && existing.TeamID == p.TeamID {
			return contest.ErrDuplicateEntry
		}
	}
	if err := r.storeContestLocked(c); err != nil {
		return err
	}

	byID := r.participants[c.ID]
	if byID == nil {
		byID = make(map[string]contest.Participant)
		r.participants[c.ID] = byID
	}
	byID[p.ID] = p
	return nil
}

func (r *ContestRepository) RemoveParticipant(_ context.Context, c contest.Contest, participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[c.ID][participantID]; !ok {
		return contest.ErrVersionConflict
	}
	if err := r.storeContestLocked(c); err != nil {
		return err
	}

	delete(r.participants[c.ID], participantID)
	return nil
}

func (r *ContestRepository) SaveLeaderboard(_ context.Context, c contest.Contest, participants []contest.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.storeContestLocked(c); err != nil {
		return err
	}
	for _, p := range participants {
		if err := r.storeParticipantLocked(p); err != nil {
			return err
		}
	}

	return nil
}

func (r *ContestRepository) storeContestLocked(c contest.Contest) error {
	stored, ok := r.contests[c.ID]
	if !ok || stored.Version != c.Version {
		return contest.ErrVersionConflict
	}

	next := cloneContest(c)
	next.Version++
	r.contests[c.ID] = next
	return nil
}

func (r *ContestRepository) storeParticipantLocked(p contest.Participant) error {
	byID, ok := r.participants[p.ContestID]
	if !ok {
		return contest.ErrVersionConflict
	}
	stored, ok := byID[p.ID]
	if !ok || stored.Version != p.Version {
		return contest.ErrVersionConflict
	}

	p.Version++
	byID[p.ID] = p
	return nil
}

func sortParticipants(out []contest.Participant) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			// Unranked participants sort after ranked ones.
			if out[i].Rank == 0 {
				return false
			}
			if out[j].Rank == 0 {
				return true
			}
			return out[i].Rank < out[j].Rank
		}
		if !out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].EntryTime.Before(out[j].EntryTime)
		}
		return out[i].ID < out[j].ID
	})
}

func containsContestStatus(statuses []contest.Status, s contest.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneContest(c contest.Contest) contest.Contest {
	copied := c
	copied.PrizeDistribution = append([]contest.PrizeSlot(nil), c.PrizeDistribution...)
	if c.Rules.Weights != nil {
		copied.Rules.Weights = make(map[sport.Stat]float64, len(c.Rules.Weights))
		for k, v := range c.Rules.Weights {
			copied.Rules.Weights[k] = v
		}
	}
	copied.SettledAt = cloneTime(c.SettledAt)
	copied.CancelledAt = cloneTime(c.CancelledAt)
	return copied
}
