// Package cache wraps repositories with read-through caching for the
// catalog and leaderboard paths that absorb most of the read traffic.
// Validation reads that gate money movement stay uncached on purpose.
package cache

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	basecache "github.com/riskibarqy/fantasy-contest/internal/platform/cache"
)

type ContestRepository struct {
	next  contest.Repository
	cache *basecache.Store
}

func NewContestRepository(next contest.Repository, cache *basecache.Store) *ContestRepository {
	return &ContestRepository{next: next, cache: cache}
}

func (r *ContestRepository) GetContest(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, contestByIDKey(contestID), func(ctx context.Context) (any, error) {
		item, exists, err := r.next.GetContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
		return cachedContestByID{value: cloneContest(item), exists: exists}, nil
	})
	if err != nil {
		return contest.Contest{}, false, err
	}

	cached, _ := v.(cachedContestByID)
	return cloneContest(cached.value), cached.exists, nil
}

func (r *ContestRepository) CreateContest(ctx context.Context, c contest.Contest) error {
	if err := r.next.CreateContest(ctx, c); err != nil {
		return err
	}
	r.cache.Delete(ctx, contestByIDKey(c.ID))
	r.cache.DeletePrefix(ctx, contestListPrefix)
	return nil
}

func (r *ContestRepository) UpdateContest(ctx context.Context, c contest.Contest) error {
	if err := r.next.UpdateContest(ctx, c); err != nil {
		return err
	}
	r.invalidateContest(ctx, c.ID)
	return nil
}

func (r *ContestRepository) ListContests(ctx context.Context, filter contest.Filter) ([]contest.Contest, error) {
	v, err := r.cache.GetOrLoad(ctx, contestListKey(filter), func(ctx context.Context) (any, error) {
		items, err := r.next.ListContests(ctx, filter)
		if err != nil {
			return nil, err
		}
		return cloneContests(items), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contest.Contest)
	return cloneContests(items), nil
}

// GetParticipant backs the duplicate-entry and ownership checks in front
// of wallet debits, so it always reads the source of truth.
func (r *ContestRepository) GetParticipant(ctx context.Context, contestID, userID, teamID string) (contest.Participant, bool, error) {
	return r.next.GetParticipant(ctx, contestID, userID, teamID)
}

func (r *ContestRepository) ListParticipants(ctx context.Context, contestID string) ([]contest.Participant, error) {
	v, err := r.cache.GetOrLoad(ctx, participantsKey(contestID), func(ctx context.Context) (any, error) {
		items, err := r.next.ListParticipants(ctx, contestID)
		if err != nil {
			return nil, err
		}
		return append([]contest.Participant(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contest.Participant)
	return append([]contest.Participant(nil), items...), nil
}

// ListParticipantsByUser feeds the per-user entry limit, a rule with no
// database constraint behind it, so staleness here is not acceptable.
func (r *ContestRepository) ListParticipantsByUser(ctx context.Context, contestID, userID string) ([]contest.Participant, error) {
	return r.next.ListParticipantsByUser(ctx, contestID, userID)
}

func (r *ContestRepository) ListUserEntries(ctx context.Context, userID string) ([]contest.Participant, error) {
	v, err := r.cache.GetOrLoad(ctx, userEntriesKey(userID), func(ctx context.Context) (any, error) {
		items, err := r.next.ListUserEntries(ctx, userID)
		if err != nil {
			return nil, err
		}
		return append([]contest.Participant(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]contest.Participant)
	return append([]contest.Participant(nil), items...), nil
}

func (r *ContestRepository) UpdateParticipant(ctx context.Context, p contest.Participant) error {
	if err := r.next.UpdateParticipant(ctx, p); err != nil {
		return err
	}
	r.cache.Delete(ctx, participantsKey(p.ContestID))
	r.cache.Delete(ctx, userEntriesKey(p.UserID))
	return nil
}

func (r *ContestRepository) AdmitParticipant(ctx context.Context, c contest.Contest, p contest.Participant) error {
	if err := r.next.AdmitParticipant(ctx, c, p); err != nil {
		return err
	}
	r.invalidateContest(ctx, c.ID)
	r.cache.Delete(ctx, userEntriesKey(p.UserID))
	return nil
}

func (r *ContestRepository) RemoveParticipant(ctx context.Context, c contest.Contest, participantID string) error {
	if err := r.next.RemoveParticipant(ctx, c, participantID); err != nil {
		return err
	}
	r.invalidateContest(ctx, c.ID)
	// Only the participant id is known here, not its user.
	r.cache.DeletePrefix(ctx, userEntriesPrefix)
	return nil
}

func (r *ContestRepository) SaveLeaderboard(ctx context.Context, c contest.Contest, participants []contest.Participant) error {
	if err := r.next.SaveLeaderboard(ctx, c, participants); err != nil {
		return err
	}
	r.invalidateContest(ctx, c.ID)
	r.cache.DeletePrefix(ctx, userEntriesPrefix)
	return nil
}

func (r *ContestRepository) invalidateContest(ctx context.Context, contestID string) {
	r.cache.Delete(ctx, contestByIDKey(contestID))
	r.cache.Delete(ctx, participantsKey(contestID))
	r.cache.DeletePrefix(ctx, contestListPrefix)
}

type cachedContestByID struct {
	value  contest.Contest
	exists bool
}

const (
	contestListPrefix = "contest:list:"
	userEntriesPrefix = "contest:entries:user:"
)

func contestByIDKey(contestID string) string {
	return "contest:id:" + contestID
}

func contestListKey(filter contest.Filter) string {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	return contestListPrefix + filter.MatchID +
		"|" + strings.Join(statuses, ",") +
		"|" + strconv.Itoa(filter.Limit) +
		"|" + strconv.Itoa(filter.Offset)
}

func participantsKey(contestID string) string {
	return "contest:participants:" + contestID
}

func userEntriesKey(userID string) string {
	return userEntriesPrefix + userID
}

func cloneContest(c contest.Contest) contest.Contest {
	out := c
	out.PrizeDistribution = append([]contest.PrizeSlot(nil), c.PrizeDistribution...)
	if c.Rules.Weights != nil {
		weights := make(map[sport.Stat]float64, len(c.Rules.Weights))
		for stat, weight := range c.Rules.Weights {
			weights[stat] = weight
		}
		out.Rules.Weights = weights
	}
	if c.SettledAt != nil {
		t := *c.SettledAt
		out.SettledAt = &t
	}
	if c.CancelledAt != nil {
		t := *c.CancelledAt
		out.CancelledAt = &t
	}
	return out
}

func cloneContests(items []contest.Contest) []contest.Contest {
	out := make([]contest.Contest, 0, len(items))
	for _, item := range items {
		out = append(out, cloneContest(item))
	}
	return out
}

type PlayerRepository struct {
	next  player.Repository
	cache *basecache.Store
}

func NewPlayerRepository(next player.Repository, cache *basecache.Store) *PlayerRepository {
	return &PlayerRepository{next: next, cache: cache}
}

func (r *PlayerRepository) Get(ctx context.Context, playerID string) (player.Player, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "player:id:"+playerID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.Get(ctx, playerID)
		if err != nil {
			return nil, err
		}
		return cachedPlayerByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return player.Player{}, false, err
	}

	cached, _ := v.(cachedPlayerByID)
	return cached.value, cached.exists, nil
}

func (r *PlayerRepository) ListBySport(ctx context.Context, s sport.Sport) ([]player.Player, error) {
	key := "player:sport:" + string(s)
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.ListBySport(ctx, s)
		if err != nil {
			return nil, err
		}
		return append([]player.Player(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]player.Player)
	return append([]player.Player(nil), items...), nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []string) ([]player.Player, error) {
	// The result keeps request order, so the key must too. Two calls
	// asking for the same ids in a different order cache separately.
	key := "player:ids:" + strings.Join(playerIDs, ",")
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.GetByIDs(ctx, playerIDs)
		if err != nil {
			return nil, err
		}
		return append([]player.Player(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]player.Player)
	return append([]player.Player(nil), items...), nil
}

func (r *PlayerRepository) Upsert(ctx context.Context, p player.Player) error {
	if err := r.next.Upsert(ctx, p); err != nil {
		return err
	}
	// Sport lists and id-batch keys both embed this player.
	r.cache.DeletePrefix(ctx, "player:")
	return nil
}

type cachedPlayerByID struct {
	value  player.Player
	exists bool
}

type MatchRepository struct {
	next  match.Repository
	cache *basecache.Store
}

func NewMatchRepository(next match.Repository, cache *basecache.Store) *MatchRepository {
	return &MatchRepository{next: next, cache: cache}
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (match.Match, bool, error) {
	v, err := r.cache.GetOrLoad(ctx, "match:id:"+matchID, func(ctx context.Context) (any, error) {
		item, exists, err := r.next.Get(ctx, matchID)
		if err != nil {
			return nil, err
		}
		return cachedMatchByID{value: cloneMatch(item), exists: exists}, nil
	})
	if err != nil {
		return match.Match{}, false, err
	}

	cached, _ := v.(cachedMatchByID)
	return cloneMatch(cached.value), cached.exists, nil
}

func (r *MatchRepository) List(ctx context.Context) ([]match.Match, error) {
	v, err := r.cache.GetOrLoad(ctx, "match:list", func(ctx context.Context) (any, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return cloneMatches(items), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]match.Match)
	return cloneMatches(items), nil
}

func (r *MatchRepository) ListUpcoming(ctx context.Context, limit int) ([]match.Match, error) {
	key := "match:upcoming:" + strconv.Itoa(limit)
	v, err := r.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		items, err := r.next.ListUpcoming(ctx, limit)
		if err != nil {
			return nil, err
		}
		return cloneMatches(items), nil
	})
	if err != nil {
		return nil, err
	}

	items, _ := v.([]match.Match)
	return cloneMatches(items), nil
}

func (r *MatchRepository) Upsert(ctx context.Context, m match.Match) error {
	if err := r.next.Upsert(ctx, m); err != nil {
		return err
	}
	r.cache.Delete(ctx, "match:id:"+m.ID)
	r.cache.Delete(ctx, "match:list")
	r.cache.DeletePrefix(ctx, "match:upcoming:")
	return nil
}

type cachedMatchByID struct {
	value  match.Match
	exists bool
}

func cloneMatch(m match.Match) match.Match {
	out := m
	if m.HomeScore != nil {
		v := *m.HomeScore
		out.HomeScore = &v
	}
	if m.AwayScore != nil {
		v := *m.AwayScore
		out.AwayScore = &v
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func cloneMatches(items []match.Match) []match.Match {
	out := make([]match.Match, 0, len(items))
	for _, item := range items {
		out = append(out, cloneMatch(item))
	}
	return out
}
