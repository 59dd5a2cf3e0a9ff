package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/domain/user"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

const (
	testWebhookSecret = "whsec-test"
	testInternalToken = "job-token-test"

	// Kickoff 48h out so registration windows stay open during the run.
	testFootballMatch = "mt-http-001"
	// Kickoff already passed but the match was never started.
	testOverdueMatch = "mt-http-002"
)

// tokenPrincipalVerifier treats the bearer token as the user id, so a
// test picks its identity with the Authorization header alone.
type tokenPrincipalVerifier struct{}

func (tokenPrincipalVerifier) VerifyAccessToken(_ context.Context, token string) (user.Principal, error) {
	return user.Principal{UserID: token, Email: token + "@example.com"}, nil
}

type stubIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *stubIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	return fmt.Sprintf("%s-%03d", g.prefix, g.next), nil
}

type routerEnv struct {
	router     http.Handler
	ledger     *usecase.LedgerService
	rosterRepo *memory.RosterRepository
	dispatches *memory.JobDispatchRepository
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	kickoff := time.Now().UTC().Add(48 * time.Hour)
	matchRepo := memory.NewMatchRepository([]match.Match{
		{
			ID:         testFootballMatch,
			Sport:      sport.Football,
			HomeTeam:   "Persija Jakarta",
			AwayTeam:   "Persib Bandung",
			HomeTeamID: "idn-persija",
			AwayTeamID: "idn-persib",
			Venue:      "Jakarta International Stadium",
			StartsAt:   kickoff,
			Status:     match.StatusScheduled,
		},
		{
			ID:         testOverdueMatch,
			Sport:      sport.Football,
			HomeTeam:   "Persebaya Surabaya",
			AwayTeam:   "Bali United",
			HomeTeamID: "idn-persebaya",
			AwayTeamID: "idn-baliutd",
			StartsAt:   time.Now().UTC().Add(-time.Hour),
			Status:     match.StatusScheduled,
		},
	})
	playerRepo := memory.NewPlayerRepository(memory.SeedPlayers())
	ledgerRepo := memory.NewLedgerRepository()
	contestRepo := memory.NewContestRepository()
	rosterRepo := memory.NewRosterRepository()
	dispatchRepo := memory.NewJobDispatchRepository()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledgerService := usecase.NewLedgerService(ledgerRepo, &stubIDGenerator{prefix: "tx"}, nil, notify.Nop{}, usecase.LedgerConfig{}, logger)
	contestService := usecase.NewContestService(contestRepo, rosterRepo, matchRepo, ledgerService, &stubIDGenerator{prefix: "ct"}, notify.Nop{}, usecase.ContestConfig{}, logger)
	rosterService := usecase.NewRosterService(rosterRepo, playerRepo, matchRepo, &stubIDGenerator{prefix: "rs"}, notify.Nop{}, usecase.RosterConfig{}, logger)
	scoringService := usecase.NewScoringService(rosterService, contestService, matchRepo, logger)
	catalogService := usecase.NewCatalogService(playerRepo, matchRepo)
	orchestrator := usecase.NewJobOrchestratorService(matchRepo, contestRepo, ledgerService, nil, dispatchRepo, usecase.JobOrchestratorConfig{}, logger)

	handler := NewHandler(ledgerService, contestService, rosterService, scoringService, catalogService, orchestrator, dispatchRepo, testWebhookSecret, logger)
	router := NewRouter(handler, tokenPrincipalVerifier{}, logger, false, []string{"*"}, testInternalToken, []string{"CU"})

	return &routerEnv{
		router:     router,
		ledger:     ledgerService,
		rosterRepo: rosterRepo,
		dispatches: dispatchRepo,
	}
}

func (env *routerEnv) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *routerEnv) doInternal(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Internal-Job-Token", testInternalToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// fund credits a bonus through the internal grant route, so the wallet
// has balance without a gateway round trip.
func (env *routerEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()

	rec := env.doInternal(t, http.MethodPost, "/v1/internal/ledger/grants", map[string]any{
		"userId": userID,
		"type":   "bonus",
		"amount": amount,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant for %s failed with status %d: %s", userID, rec.Code, rec.Body.String())
	}
}

// seedSubmittedRoster plants a submitted roster directly in the store.
// Contest admission only checks ownership, match, and status.
func (env *routerEnv) seedSubmittedRoster(t *testing.T, rosterID, userID, matchID string) {
	t.Helper()

	now := time.Now().UTC()
	submitted := now
	err := env.rosterRepo.Create(context.Background(), roster.Roster{
		ID:          rosterID,
		UserID:      userID,
		MatchID:     matchID,
		Sport:       sport.Football,
		Name:        "Starting XI",
		Status:      roster.StatusSubmitted,
		SubmittedAt: &submitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed roster %s: %v", rosterID, err)
	}
}

func decodeDataObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		APIVersion string         `json:"apiVersion"`
		Data       map[string]any `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (body %q)", err, rec.Body.String())
	}
	if envelope.APIVersion != "2.0" {
		t.Fatalf("expected apiVersion 2.0, got %q", envelope.APIVersion)
	}
	return envelope.Data
}

func decodeDataList(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()

	var envelope struct {
		Data []any `json:"data"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope.Data
}

func errorReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error *struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v (body %q)", err, rec.Body.String())
	}
	if envelope.Error == nil || len(envelope.Error.Errors) == 0 {
		t.Fatalf("expected error detail in body %q", rec.Body.String())
	}
	return envelope.Error.Errors[0].Reason
}

func TestRouter_Healthz(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	data := decodeDataObject(t, rec)
	if data["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", data["status"])
	}
}

func TestRouter_ListMatches(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/matches", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if matches := decodeDataList(t, rec); len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestRouter_UpcomingMatchesHonorsLimit(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/matches/upcoming?limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if matches := decodeDataList(t, rec); len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestRouter_MatchPlayersListsBothTeams(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/matches/"+testFootballMatch+"/players", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	players := decodeDataList(t, rec)
	if len(players) == 0 {
		t.Fatal("expected players for the match")
	}
	for _, raw := range players {
		p, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("unexpected player payload %T", raw)
		}
		teamID, _ := p["teamId"].(string)
		if teamID != "idn-persija" && teamID != "idn-persib" {
			t.Fatalf("player %v from foreign team %q", p["id"], teamID)
		}
	}
}

func TestRouter_GetPlayerNotFound(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/players/no-such-player", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if reason := errorReason(t, rec); reason != "notFound" {
		t.Fatalf("expected reason notFound, got %q", reason)
	}
}

func TestRouter_PlayersByUnknownSport(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/sports/chess/players", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
