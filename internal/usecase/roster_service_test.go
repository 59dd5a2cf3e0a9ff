package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
)

const rosterTestMatchID = "mt-11"

var rosterTestNow = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

type rosterFixture struct {
	service *RosterService
	rosters *memory.RosterRepository
	players *memory.PlayerRepository
	matches *memory.MatchRepository
}

// rosterTestPlayers seeds twelve affordable squad players on the two
// match teams plus the outliers the rejection tests need.
func rosterTestPlayers() []player.Player {
	out := make([]player.Player, 0, 17)
	for i := 1; i <= 6; i++ {
		out = append(out, player.Player{
			ID:       fmt.Sprintf("home-%d", i),
			Sport:    sport.Football,
			TeamID:   "idn-persija",
			TeamName: "Persija Jakarta",
			Name:     fmt.Sprintf("Persija Player %d", i),
			Role:     "midfielder",
			Price:    decimal.NewFromInt(9),
		})
		out = append(out, player.Player{
			ID:       fmt.Sprintf("away-%d", i),
			Sport:    sport.Football,
			TeamID:   "idn-persib",
			TeamName: "Persib Bandung",
			Name:     fmt.Sprintf("Persib Player %d", i),
			Role:     "midfielder",
			Price:    decimal.NewFromInt(9),
		})
	}
	for i := 1; i <= 3; i++ {
		out = append(out, player.Player{
			ID:       fmt.Sprintf("big-%d", i),
			Sport:    sport.Football,
			TeamID:   "idn-persija",
			TeamName: "Persija Jakarta",
			Name:     fmt.Sprintf("Marquee Player %d", i),
			Role:     "forward",
			Price:    decimal.NewFromInt(40),
		})
	}
	out = append(out,
		player.Player{
			ID:       "stranger-1",
			Sport:    sport.Football,
			TeamID:   "idn-persebaya",
			TeamName: "Persebaya Surabaya",
			Name:     "Surabaya Stranger",
			Role:     "forward",
			Price:    decimal.NewFromInt(10),
		},
		player.Player{
			ID:       "cricketer-1",
			Sport:    sport.Cricket,
			TeamID:   "crk-mum",
			TeamName: "Mumbai Mavericks",
			Name:     "Wandering Batsman",
			Role:     "batsman",
			Price:    decimal.NewFromInt(10),
		},
	)
	return out
}

func newRosterFixture() *rosterFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rosters := memory.NewRosterRepository()
	players := memory.NewPlayerRepository(rosterTestPlayers())
	matches := memory.NewMatchRepository([]match.Match{{
		ID:         rosterTestMatchID,
		Sport:      sport.Football,
		HomeTeam:   "Persija Jakarta",
		AwayTeam:   "Persib Bandung",
		HomeTeamID: "idn-persija",
		AwayTeamID: "idn-persib",
		StartsAt:   rosterTestNow.Add(24 * time.Hour),
		Status:     match.StatusScheduled,
	}})

	service := NewRosterService(
		rosters,
		players,
		matches,
		&seqIDGenerator{prefix: "team"},
		notify.Nop{},
		RosterConfig{},
		logger,
	)
	service.now = func() time.Time { return rosterTestNow }

	return &rosterFixture{
		service: service,
		rosters: rosters,
		players: players,
		matches: matches,
	}
}

func (f *rosterFixture) draft(t *testing.T, userID string) roster.Roster {
	t.Helper()
	r, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: userID, MatchID: rosterTestMatchID})
	if err != nil {
		t.Fatalf("create roster: %v", err)
	}
	return r
}

func (f *rosterFixture) add(t *testing.T, rosterID, userID, playerID string) roster.Roster {
	t.Helper()
	r, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: rosterID, UserID: userID, PlayerID: playerID})
	if err != nil {
		t.Fatalf("add player %s: %v", playerID, err)
	}
	return r
}

// fullSquad drafts, fills eleven picks, sets both armbands, and submits.
func (f *rosterFixture) fullSquad(t *testing.T, userID, captainID, viceID string) roster.Roster {
	t.Helper()
	r := f.draft(t, userID)
	for i := 1; i <= 6; i++ {
		f.add(t, r.ID, userID, fmt.Sprintf("home-%d", i))
	}
	for i := 1; i <= 5; i++ {
		f.add(t, r.ID, userID, fmt.Sprintf("away-%d", i))
	}
	if _, err := f.service.SetCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: userID, PlayerID: captainID}); err != nil {
		t.Fatalf("set captain: %v", err)
	}
	if _, err := f.service.SetViceCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: userID, PlayerID: viceID}); err != nil {
		t.Fatalf("set vice-captain: %v", err)
	}
	submitted, err := f.service.Submit(t.Context(), r.ID, userID)
	if err != nil {
		t.Fatalf("submit roster: %v", err)
	}
	return submitted
}

func (f *rosterFixture) stored(t *testing.T, rosterID string) roster.Roster {
	t.Helper()
	r, ok, err := f.rosters.Get(t.Context(), rosterID)
	if err != nil {
		t.Fatalf("get roster: %v", err)
	}
	if !ok {
		t.Fatalf("roster %s not found", rosterID)
	}
	return r
}

func TestRosterService_CreateRoster(t *testing.T) {
	f := newRosterFixture()

	r, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: "user-a", MatchID: rosterTestMatchID, Name: "Garuda XI"})
	if err != nil {
		t.Fatalf("create roster: %v", err)
	}
	if r.Status != roster.StatusDraft || r.Sport != sport.Football || r.Name != "Garuda XI" {
		t.Fatalf("unexpected roster %+v", r)
	}
	if r.ID != "team-001" {
		t.Fatalf("unexpected roster id %s", r.ID)
	}

	named := f.draft(t, "user-b")
	if named.Name != "Team 1" {
		t.Fatalf("expected default name, got %s", named.Name)
	}

	if _, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: "user-a", MatchID: rosterTestMatchID}); !errors.Is(err, roster.ErrDuplicateRoster) {
		t.Fatalf("expected one roster per user and match, got %v", err)
	}

	if _, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: "user-c", MatchID: "mt-unknown"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown match, got %v", err)
	}

	if err := f.matches.Upsert(t.Context(), match.Match{
		ID:         "mt-live",
		Sport:      sport.Football,
		HomeTeamID: "idn-persija",
		AwayTeamID: "idn-persib",
		StartsAt:   rosterTestNow.Add(-time.Hour),
		Status:     match.StatusLive,
	}); err != nil {
		t.Fatalf("upsert match: %v", err)
	}
	if _, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: "user-c", MatchID: "mt-live"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected rejection for started match, got %v", err)
	}
}

func TestRosterService_AddPlayerSnapshotsPrice(t *testing.T) {
	f := newRosterFixture()
	r := f.draft(t, "user-a")

	updated := f.add(t, r.ID, "user-a", "home-1")
	if len(updated.Picks) != 1 {
		t.Fatalf("expected 1 pick, got %d", len(updated.Picks))
	}
	pick := updated.Picks[0]
	if pick.PlayerID != "home-1" || pick.PlayerName != "Persija Player 1" || pick.TeamID != "idn-persija" {
		t.Fatalf("unexpected pick %+v", pick)
	}
	if !pick.Price.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected snapshotted price 9, got %s", pick.Price)
	}
	if !pick.AddedAt.Equal(rosterTestNow) {
		t.Fatalf("expected pick stamped at selection time, got %s", pick.AddedAt)
	}

	// A later market move must not reprice the pick.
	if err := f.players.Upsert(t.Context(), player.Player{
		ID:       "home-1",
		Sport:    sport.Football,
		TeamID:   "idn-persija",
		TeamName: "Persija Jakarta",
		Name:     "Persija Player 1",
		Role:     "midfielder",
		Price:    decimal.NewFromInt(20),
	}); err != nil {
		t.Fatalf("upsert player: %v", err)
	}
	current, err := f.service.Roster(t.Context(), r.ID, "user-a")
	if err != nil {
		t.Fatalf("get roster: %v", err)
	}
	if !current.Picks[0].Price.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected price frozen at 9, got %s", current.Picks[0].Price)
	}
	if !current.TeamValue().Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected team value 9, got %s", current.TeamValue())
	}
}

func TestRosterService_AddPlayerRejections(t *testing.T) {
	f := newRosterFixture()
	r := f.draft(t, "user-a")
	f.add(t, r.ID, "user-a", "home-1")

	cases := []struct {
		name     string
		playerID string
		want     error
	}{
		{"unknown player", "home-99", ErrNotFound},
		{"wrong sport", "cricketer-1", ErrInvalidInput},
		{"not in match", "stranger-1", ErrInvalidInput},
		{"already picked", "home-1", roster.ErrDuplicatePlayer},
	}
	for _, tc := range cases {
		_, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: tc.playerID})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-b", PlayerID: "home-2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for another user's roster, got %v", err)
	}

	// 9 + 40 + 40 fits the 100 budget; the third marquee pick does not.
	f.add(t, r.ID, "user-a", "big-1")
	f.add(t, r.ID, "user-a", "big-2")
	if _, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "big-3"}); !errors.Is(err, roster.ErrBudgetExceeded) {
		t.Fatalf("expected budget exceeded, got %v", err)
	}
}

func TestRosterService_Armbands(t *testing.T) {
	f := newRosterFixture()
	r := f.draft(t, "user-a")
	f.add(t, r.ID, "user-a", "home-1")
	f.add(t, r.ID, "user-a", "home-2")

	if _, err := f.service.SetCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "home-1"}); err != nil {
		t.Fatalf("set captain: %v", err)
	}
	if _, err := f.service.SetViceCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "home-2"}); err != nil {
		t.Fatalf("set vice-captain: %v", err)
	}

	// Moving the band to the vice leaves a single captain and no vice.
	moved, err := f.service.SetCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "home-2"})
	if err != nil {
		t.Fatalf("move captain: %v", err)
	}
	captain, ok := moved.Captain()
	if !ok || captain.PlayerID != "home-2" {
		t.Fatalf("expected home-2 as captain, got %+v", captain)
	}
	if captain.IsViceCaptain {
		t.Fatalf("captain must not keep the vice band")
	}
	if _, ok := moved.ViceCaptain(); ok {
		t.Fatalf("expected no vice-captain after the move")
	}
	for _, pick := range moved.Picks {
		if pick.PlayerID == "home-1" && (pick.IsCaptain || pick.IsViceCaptain) {
			t.Fatalf("home-1 must have lost both bands, got %+v", pick)
		}
	}

	if _, err := f.service.SetCaptain(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "away-1"}); !errors.Is(err, roster.ErrPlayerNotInRoster) {
		t.Fatalf("expected rejection for player outside the squad, got %v", err)
	}
}

func TestRosterService_SubmitLifecycle(t *testing.T) {
	f := newRosterFixture()

	incomplete := f.draft(t, "user-a")
	f.add(t, incomplete.ID, "user-a", "home-1")
	if _, err := f.service.Submit(t.Context(), incomplete.ID, "user-a"); !errors.Is(err, roster.ErrIncompleteRoster) {
		t.Fatalf("expected incomplete roster rejection, got %v", err)
	}

	submitted := f.fullSquad(t, "user-b", "home-1", "away-1")
	if submitted.Status != roster.StatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("expected submitted roster, got %+v", submitted)
	}
	if len(submitted.Picks) != 11 {
		t.Fatalf("expected 11 picks, got %d", len(submitted.Picks))
	}

	if _, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: submitted.ID, UserID: "user-b", PlayerID: "away-6"}); !errors.Is(err, roster.ErrRosterLocked) {
		t.Fatalf("expected edits rejected after submit, got %v", err)
	}
	if _, err := f.service.Submit(t.Context(), submitted.ID, "user-b"); !errors.Is(err, roster.ErrRosterLocked) {
		t.Fatalf("expected resubmit rejected, got %v", err)
	}

	if _, err := f.service.Roster(t.Context(), submitted.ID, "user-z"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for another user, got %v", err)
	}
}

func TestRosterService_EditsBlockedAfterKickoff(t *testing.T) {
	f := newRosterFixture()
	r := f.draft(t, "user-a")
	f.add(t, r.ID, "user-a", "home-1")

	f.service.now = func() time.Time { return rosterTestNow.Add(25 * time.Hour) }

	if _, err := f.service.AddPlayer(t.Context(), RosterPlayerInput{RosterID: r.ID, UserID: "user-a", PlayerID: "home-2"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected edits blocked after kickoff, got %v", err)
	}
	if _, err := f.service.Submit(t.Context(), r.ID, "user-a"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected submit blocked after kickoff, got %v", err)
	}
	if _, err := f.service.CreateRoster(t.Context(), CreateRosterInput{UserID: "user-b", MatchID: rosterTestMatchID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected create blocked after kickoff, got %v", err)
	}
}

func TestRosterService_LockByMatch(t *testing.T) {
	f := newRosterFixture()
	submitted := f.fullSquad(t, "user-a", "home-1", "away-1")
	f.draft(t, "user-b")

	result, err := f.service.LockByMatch(t.Context(), rosterTestMatchID)
	if err != nil {
		t.Fatalf("lock by match: %v", err)
	}
	if result.Locked != 1 || result.Skipped != 1 {
		t.Fatalf("expected 1 locked and 1 skipped, got %+v", result)
	}

	locked := f.stored(t, submitted.ID)
	if locked.Status != roster.StatusLocked || locked.LockedAt == nil {
		t.Fatalf("expected locked roster, got %+v", locked)
	}

	again, err := f.service.LockByMatch(t.Context(), rosterTestMatchID)
	if err != nil {
		t.Fatalf("second lock by match: %v", err)
	}
	if again.Locked != 0 || again.Skipped != 2 {
		t.Fatalf("expected nothing left to lock, got %+v", again)
	}
}

func TestRosterService_ScoreByMatch(t *testing.T) {
	f := newRosterFixture()
	squadA := f.fullSquad(t, "user-a", "home-1", "away-1")
	squadB := f.fullSquad(t, "user-b", "home-2", "away-1")
	f.draft(t, "user-c")

	if _, err := f.service.LockByMatch(t.Context(), rosterTestMatchID); err != nil {
		t.Fatalf("lock by match: %v", err)
	}

	events := map[string]roster.Performance{
		"home-1": {sport.StatGoals: 1},
		"home-2": {sport.StatAssists: 1},
	}
	result, err := f.service.ScoreByMatch(t.Context(), rosterTestMatchID, events)
	if err != nil {
		t.Fatalf("score by match: %v", err)
	}
	if result.Scored != 2 || result.Skipped != 1 {
		t.Fatalf("expected 2 scored and 1 skipped, got %+v", result)
	}

	// Goal is worth 10, assist 6; home-1 is A's captain, home-2 is B's.
	scoredA := f.stored(t, squadA.ID)
	if scoredA.Status != roster.StatusScored || scoredA.TotalPoints != 26 {
		t.Fatalf("unexpected roster A after scoring: %+v", scoredA)
	}
	scoredB := f.stored(t, squadB.ID)
	if scoredB.Status != roster.StatusScored || scoredB.TotalPoints != 22 {
		t.Fatalf("unexpected roster B after scoring: %+v", scoredB)
	}
	for _, pick := range scoredA.Picks {
		if pick.PlayerID == "home-1" && pick.Points != 20 {
			t.Fatalf("expected captained goal worth 20, got %v", pick.Points)
		}
	}

	// Rescoring with the same events must not double points.
	again, err := f.service.ScoreByMatch(t.Context(), rosterTestMatchID, events)
	if err != nil {
		t.Fatalf("second score by match: %v", err)
	}
	if again.Scored != 2 {
		t.Fatalf("expected rescoring to cover both rosters, got %+v", again)
	}
	if rescored := f.stored(t, squadA.ID); rescored.TotalPoints != 26 {
		t.Fatalf("expected stable total after rescore, got %v", rescored.TotalPoints)
	}
}

func TestRosterService_ScoreLocksLateSubmissions(t *testing.T) {
	f := newRosterFixture()
	submitted := f.fullSquad(t, "user-a", "home-1", "away-1")

	// The kickoff freeze never ran; scoring locks the roster itself.
	result, err := f.service.ScoreByMatch(t.Context(), rosterTestMatchID, map[string]roster.Performance{
		"home-1": {sport.StatGoals: 2},
	})
	if err != nil {
		t.Fatalf("score by match: %v", err)
	}
	if result.Scored != 1 {
		t.Fatalf("expected late-submitted roster scored, got %+v", result)
	}

	scored := f.stored(t, submitted.ID)
	if scored.Status != roster.StatusScored || scored.LockedAt == nil || scored.TotalPoints != 40 {
		t.Fatalf("unexpected roster after late lock: %+v", scored)
	}
}
