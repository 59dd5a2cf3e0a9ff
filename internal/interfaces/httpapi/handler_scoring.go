package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// ApplyMatchPerformance ingests a live performance snapshot for one
// match: every locked roster is rescored and contest leaderboards
// recomputed. Invoked by the data feed bridge, not by end users.
func (h *Handler) ApplyMatchPerformance(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ApplyMatchPerformance")
	defer span.End()

	if h.scoringService == nil {
		writeError(ctx, w, fmt.Errorf("%w: scoring service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	matchID := strings.TrimSpace(r.PathValue("matchID"))

	var req matchPerformanceRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if len(req.Events) == 0 {
		writeError(ctx, w, fmt.Errorf("%w: events must not be empty", usecase.ErrInvalidInput))
		return
	}

	result, err := h.scoringService.ApplyPerformance(ctx, matchID, toPerformanceEvents(req.Events))
	if err != nil {
		h.logger.WarnContext(ctx, "apply match performance failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, performanceResultDTO{
		MatchID:         result.MatchID,
		RostersScored:   result.RostersScored,
		ContestsUpdated: result.ContestsUpdated,
	})
}

// CompleteMatch records the final score and runs the settlement chain.
// Partial settlement failures surface as errors so the scheduler
// retries; the payouts already made are idempotent and will not repeat.
func (h *Handler) CompleteMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CompleteMatch")
	defer span.End()

	if h.scoringService == nil {
		writeError(ctx, w, fmt.Errorf("%w: scoring service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	matchID := strings.TrimSpace(r.PathValue("matchID"))

	var req completeMatchRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.scoringService.CompleteMatch(ctx, usecase.CompleteMatchInput{
		MatchID:   matchID,
		HomeScore: req.HomeScore,
		AwayScore: req.AwayScore,
		Events:    toPerformanceEvents(req.Events),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "complete match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchCompletionResultDTO{
		MatchID:         result.MatchID,
		RostersScored:   result.RostersScored,
		ContestsUpdated: result.ContestsUpdated,
		ContestsSettled: result.ContestsSettled,
		SettleFailures:  result.SettleFailures,
	})
}

type matchPerformanceRequest struct {
	// Events maps player id to stat counters, e.g. {"p1": {"goals": 2}}.
	Events map[string]map[string]float64 `json:"events"`
}

type completeMatchRequest struct {
	HomeScore int                           `json:"homeScore" validate:"min=0"`
	AwayScore int                           `json:"awayScore" validate:"min=0"`
	Events    map[string]map[string]float64 `json:"events"`
}

type performanceResultDTO struct {
	MatchID         string `json:"matchId"`
	RostersScored   int    `json:"rostersScored"`
	ContestsUpdated int    `json:"contestsUpdated"`
}

type matchCompletionResultDTO struct {
	MatchID         string `json:"matchId"`
	RostersScored   int    `json:"rostersScored"`
	ContestsUpdated int    `json:"contestsUpdated"`
	ContestsSettled int    `json:"contestsSettled"`
	SettleFailures  int    `json:"settleFailures"`
}

func toPerformanceEvents(raw map[string]map[string]float64) map[string]roster.Performance {
	if len(raw) == 0 {
		return nil
	}

	events := make(map[string]roster.Performance, len(raw))
	for playerID, counters := range raw {
		perf := make(roster.Performance, len(counters))
		for stat, value := range counters {
			perf[sport.Stat(strings.ToLower(strings.TrimSpace(stat)))] = value
		}
		events[strings.TrimSpace(playerID)] = perf
	}
	return events
}
