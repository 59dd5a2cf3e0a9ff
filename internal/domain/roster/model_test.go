package roster

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

var testNow = time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)

func cricketRules(t *testing.T) sport.Rules {
	t.Helper()
	rules, err := sport.DefaultRules(sport.Cricket)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return rules
}

func draftRoster() Roster {
	return New("r-1", "u-1", "m-1", sport.Cricket, "My XI", testNow)
}

// fullDraft returns a draft with a complete 11-pick squad, p1 as
// captain and p2 as vice-captain, each pick priced at 9 credits.
func fullDraft(t *testing.T) Roster {
	t.Helper()
	rules := cricketRules(t)

	r := draftRoster()
	var err error
	for i := 1; i <= rules.SquadSize; i++ {
		r, err = r.WithPlayer(Pick{
			PlayerID: fmt.Sprintf("p%d", i),
			Price:    decimal.NewFromInt(9),
		}, rules, testNow)
		if err != nil {
			t.Fatalf("expected no error adding p%d, got %v", i, err)
		}
	}
	if r, err = r.WithCaptain("p1", testNow); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if r, err = r.WithViceCaptain("p2", testNow); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return r
}

func TestWithPlayerGuards(t *testing.T) {
	rules := cricketRules(t)

	tests := []struct {
		name      string
		prepare   func(*testing.T) Roster
		pick      Pick
		targetErr error
	}{
		{
			name:      "adds to draft",
			prepare:   func(*testing.T) Roster { return draftRoster() },
			pick:      Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)},
			targetErr: nil,
		},
		{
			name: "rejects when not draft",
			prepare: func(t *testing.T) Roster {
				r, err := fullDraft(t).Submitted(rules, testNow)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return r
			},
			pick:      Pick{PlayerID: "p99", Price: decimal.NewFromInt(1)},
			targetErr: ErrRosterLocked,
		},
		{
			name: "rejects duplicate player",
			prepare: func(t *testing.T) Roster {
				r, err := draftRoster().WithPlayer(Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)}, rules, testNow)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return r
			},
			pick:      Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)},
			targetErr: ErrDuplicatePlayer,
		},
		{
			name:      "rejects over budget",
			prepare:   func(*testing.T) Roster { return draftRoster() },
			pick:      Pick{PlayerID: "p1", Price: decimal.NewFromInt(101)},
			targetErr: ErrBudgetExceeded,
		},
		{
			name:      "rejects when squad full",
			prepare:   func(t *testing.T) Roster { return fullDraft(t) },
			pick:      Pick{PlayerID: "p99", Price: decimal.NewFromInt(1)},
			targetErr: ErrSquadFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.prepare(t)
			before := r.TeamValue()

			next, err := r.WithPlayer(tt.pick, rules, testNow)
			if tt.targetErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if !next.TeamValue().Equal(before.Add(tt.pick.Price)) {
					t.Fatalf("expected team value %s, got %s", before.Add(tt.pick.Price), next.TeamValue())
				}
				return
			}

			if !errors.Is(err, tt.targetErr) {
				t.Fatalf("expected error %v, got %v", tt.targetErr, err)
			}
			if !r.TeamValue().Equal(before) {
				t.Fatalf("expected roster unchanged at %s, got %s", before, r.TeamValue())
			}
		})
	}
}

func TestBudgetInvariantHoldsAcrossAdds(t *testing.T) {
	rules := cricketRules(t)
	r := draftRoster()

	var err error
	// 10 picks at 9.5 credits: value 95, remaining 100 - 95 = 5.
	for i := 1; i <= 10; i++ {
		r, err = r.WithPlayer(Pick{
			PlayerID: fmt.Sprintf("p%d", i),
			Price:    decimal.RequireFromString("9.5"),
		}, rules, testNow)
		if err != nil {
			t.Fatalf("expected no error adding p%d, got %v", i, err)
		}
	}
	if !r.RemainingBudget(rules.BudgetCap).Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected remaining budget 5, got %s", r.RemainingBudget(rules.BudgetCap))
	}

	// An 11th pick priced 5.5 would reach 100.5 and must be rejected.
	if _, err := r.WithPlayer(Pick{PlayerID: "p11", Price: decimal.RequireFromString("5.5")}, rules, testNow); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if !r.TeamValue().Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected team value unchanged at 95, got %s", r.TeamValue())
	}

	// Exactly reaching the cap is fine.
	r, err = r.WithPlayer(Pick{PlayerID: "p11", Price: decimal.NewFromInt(5)}, rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !r.RemainingBudget(rules.BudgetCap).IsZero() {
		t.Fatalf("expected remaining budget 0, got %s", r.RemainingBudget(rules.BudgetCap))
	}
}

func TestWithoutPlayer(t *testing.T) {
	rules := cricketRules(t)
	r, err := draftRoster().WithPlayer(Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)}, rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	next, err := r.WithoutPlayer("p1", testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(next.Picks) != 0 {
		t.Fatalf("expected empty squad, got %d picks", len(next.Picks))
	}

	if _, err := r.WithoutPlayer("p2", testNow); !errors.Is(err, ErrPlayerNotInRoster) {
		t.Fatalf("expected ErrPlayerNotInRoster, got %v", err)
	}
}

func TestArmbandsAreExclusive(t *testing.T) {
	r := fullDraft(t)

	captain, ok := r.Captain()
	if !ok || captain.PlayerID != "p1" {
		t.Fatalf("expected captain p1, got %+v", captain)
	}
	vice, ok := r.ViceCaptain()
	if !ok || vice.PlayerID != "p2" {
		t.Fatalf("expected vice-captain p2, got %+v", vice)
	}

	// Moving the armband clears the previous holder.
	next, err := r.WithCaptain("p3", testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	captain, ok = next.Captain()
	if !ok || captain.PlayerID != "p3" {
		t.Fatalf("expected captain p3, got %+v", captain)
	}
	count := 0
	for _, pick := range next.Picks {
		if pick.IsCaptain {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one captain, got %d", count)
	}

	// Promoting the vice-captain to captain sheds the vice armband.
	next, err = r.WithCaptain("p2", testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := next.ViceCaptain(); ok {
		t.Fatal("expected vice-captain armband to be vacated")
	}

	if _, err := r.WithCaptain("p99", testNow); !errors.Is(err, ErrPlayerNotInRoster) {
		t.Fatalf("expected ErrPlayerNotInRoster, got %v", err)
	}
}

func TestSubmittedGuards(t *testing.T) {
	rules := cricketRules(t)

	// Incomplete squad cannot submit.
	r, err := draftRoster().WithPlayer(Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)}, rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := r.Submitted(rules, testNow); !errors.Is(err, ErrIncompleteRoster) {
		t.Fatalf("expected ErrIncompleteRoster, got %v", err)
	}

	// Full squad without armbands cannot submit either.
	full := fullDraft(t)
	bare := full.cloned()
	for i := range bare.Picks {
		bare.Picks[i].IsCaptain = false
		bare.Picks[i].IsViceCaptain = false
	}
	if _, err := bare.Submitted(rules, testNow); !errors.Is(err, ErrIncompleteRoster) {
		t.Fatalf("expected ErrIncompleteRoster, got %v", err)
	}

	submitted, err := full.Submitted(rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if submitted.Status != StatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("expected submitted with timestamp, got %s", submitted.Status)
	}

	if _, err := submitted.Submitted(rules, testNow); !errors.Is(err, ErrRosterLocked) {
		t.Fatalf("expected ErrRosterLocked, got %v", err)
	}
}

func TestLockedLifecycle(t *testing.T) {
	rules := cricketRules(t)
	submitted, err := fullDraft(t).Submitted(rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	locked, err := submitted.Locked(testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if locked.Status != StatusLocked || locked.LockedAt == nil {
		t.Fatalf("expected locked with timestamp, got %s", locked.Status)
	}

	// Drafts cannot be locked, and locked rosters reject all mutation.
	if _, err := draftRoster().Locked(testNow); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := locked.WithPlayer(Pick{PlayerID: "p99", Price: decimal.NewFromInt(1)}, rules, testNow); !errors.Is(err, ErrRosterLocked) {
		t.Fatalf("expected ErrRosterLocked, got %v", err)
	}
	if _, err := locked.WithoutPlayer("p1", testNow); !errors.Is(err, ErrRosterLocked) {
		t.Fatalf("expected ErrRosterLocked, got %v", err)
	}
	if _, err := locked.WithCaptain("p2", testNow); !errors.Is(err, ErrRosterLocked) {
		t.Fatalf("expected ErrRosterLocked, got %v", err)
	}
}

func TestMutationsDoNotShareBackingArray(t *testing.T) {
	rules := cricketRules(t)
	r, err := draftRoster().WithPlayer(Pick{PlayerID: "p1", Price: decimal.NewFromInt(9)}, rules, testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	next, err := r.WithCaptain("p1", testNow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if r.Picks[0].IsCaptain {
		t.Fatal("expected original roster picks untouched")
	}
	if !next.Picks[0].IsCaptain {
		t.Fatal("expected new roster to carry the armband")
	}
}
