package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
)

func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatches")
	defer span.End()

	matches, err := h.catalogService.ListMatches(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list matches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchToDTO(ctx, m))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListUpcomingMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListUpcomingMatches")
	defer span.End()

	limit, err := parsePositiveIntQuery(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.catalogService.UpcomingMatches(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list upcoming matches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]matchDTO, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchToDTO(ctx, m))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	m, err := h.catalogService.Match(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matchToDTO(ctx, m))
}

func (h *Handler) ListMatchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatchPlayers")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	players, err := h.catalogService.MatchPlayers(ctx, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "list match players failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]playerDTO, 0, len(players))
	for _, p := range players {
		items = append(items, playerToDTO(ctx, p))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) ListPlayersBySport(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPlayersBySport")
	defer span.End()

	rawSport := r.PathValue("sport")
	players, err := h.catalogService.ListPlayersBySport(ctx, rawSport)
	if err != nil {
		h.logger.WarnContext(ctx, "list players by sport failed", "sport", rawSport, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]playerDTO, 0, len(players))
	for _, p := range players {
		items = append(items, playerToDTO(ctx, p))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer")
	defer span.End()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	p, err := h.catalogService.Player(ctx, playerID)
	if err != nil {
		h.logger.WarnContext(ctx, "get player failed", "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playerToDTO(ctx, p))
}

type matchDTO struct {
	ID          string `json:"id"`
	Sport       string `json:"sport"`
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	HomeTeamID  string `json:"homeTeamId"`
	AwayTeamID  string `json:"awayTeamId"`
	Venue       string `json:"venue,omitempty"`
	StartsAt    string `json:"startsAt"`
	Status      string `json:"status"`
	HomeScore   *int   `json:"homeScore,omitempty"`
	AwayScore   *int   `json:"awayScore,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type playerDTO struct {
	ID       string `json:"id"`
	Sport    string `json:"sport"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Price    string `json:"price"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func matchToDTO(ctx context.Context, v match.Match) matchDTO {
	ctx, span := startSpan(ctx, "httpapi.matchToDTO")
	defer span.End()

	dto := matchDTO{
		ID:         v.ID,
		Sport:      string(v.Sport),
		HomeTeam:   v.HomeTeam,
		AwayTeam:   v.AwayTeam,
		HomeTeamID: v.HomeTeamID,
		AwayTeamID: v.AwayTeamID,
		Venue:      v.Venue,
		StartsAt:   v.StartsAt.UTC().Format(time.RFC3339),
		Status:     match.NormalizeStatus(v.Status),
	}

	if v.HomeScore != nil {
		score := *v.HomeScore
		dto.HomeScore = &score
	}
	if v.AwayScore != nil {
		score := *v.AwayScore
		dto.AwayScore = &score
	}
	if v.CompletedAt != nil {
		dto.CompletedAt = v.CompletedAt.UTC().Format(time.RFC3339)
	}

	return dto
}

func playerToDTO(ctx context.Context, v player.Player) playerDTO {
	ctx, span := startSpan(ctx, "httpapi.playerToDTO")
	defer span.End()

	return playerDTO{
		ID:       v.ID,
		Sport:    string(v.Sport),
		TeamID:   v.TeamID,
		TeamName: v.TeamName,
		Name:     v.Name,
		Role:     v.Role,
		Price:    v.Price.String(),
		ImageURL: v.ImageURL,
	}
}
