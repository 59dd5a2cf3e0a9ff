package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

func (h *Handler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateRoster")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req createRosterRequest
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

	item, err := h.rosterService.CreateRoster(ctx, usecase.CreateRosterInput{
		UserID:  principal.UserID,
		MatchID: req.MatchID,
		Name:    req.Name,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create roster failed", "user_id", principal.UserID, "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, rosterToDTO(ctx, item))
}

func (h *Handler) ListMyRosters(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMyRosters")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosters, err := h.rosterService.ListByUser(ctx, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "list rosters failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]rosterDTO, 0, len(rosters))
	for _, item := range rosters {
		items = append(items, rosterToDTO(ctx, item))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRoster")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))
	item, err := h.rosterService.Roster(ctx, rosterID, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "get roster failed", "user_id", principal.UserID, "roster_id", rosterID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

func (h *Handler) AddRosterPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AddRosterPlayer")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))

	var req rosterPlayerRequest
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

	item, err := h.rosterService.AddPlayer(ctx, usecase.RosterPlayerInput{
		RosterID: rosterID,
		UserID:   principal.UserID,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "add roster player failed", "user_id", principal.UserID, "roster_id", rosterID, "player_id", req.PlayerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

func (h *Handler) RemoveRosterPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemoveRosterPlayer")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))
	playerID := strings.TrimSpace(r.PathValue("playerID"))

	item, err := h.rosterService.RemovePlayer(ctx, usecase.RosterPlayerInput{
		RosterID: rosterID,
		UserID:   principal.UserID,
		PlayerID: playerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "remove roster player failed", "user_id", principal.UserID, "roster_id", rosterID, "player_id", playerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

func (h *Handler) SetRosterCaptain(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetRosterCaptain")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))

	var req rosterPlayerRequest
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

	item, err := h.rosterService.SetCaptain(ctx, usecase.RosterPlayerInput{
		RosterID: rosterID,
		UserID:   principal.UserID,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "set roster captain failed", "user_id", principal.UserID, "roster_id", rosterID, "player_id", req.PlayerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

func (h *Handler) SetRosterViceCaptain(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetRosterViceCaptain")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))

	var req rosterPlayerRequest
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

	item, err := h.rosterService.SetViceCaptain(ctx, usecase.RosterPlayerInput{
		RosterID: rosterID,
		UserID:   principal.UserID,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "set roster vice captain failed", "user_id", principal.UserID, "roster_id", rosterID, "player_id", req.PlayerID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

func (h *Handler) SubmitRoster(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitRoster")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	rosterID := strings.TrimSpace(r.PathValue("rosterID"))
	item, err := h.rosterService.Submit(ctx, rosterID, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "submit roster failed", "user_id", principal.UserID, "roster_id", rosterID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, rosterToDTO(ctx, item))
}

type createRosterRequest struct {
	MatchID string `json:"matchId" validate:"required"`
	Name    string `json:"name" validate:"max=100"`
}

type rosterPlayerRequest struct {
	PlayerID string `json:"playerId" validate:"required"`
}

type rosterDTO struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	MatchID     string          `json:"matchId"`
	Sport       string          `json:"sport"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Picks       []rosterPickDTO `json:"picks"`
	TeamValue   string          `json:"teamValue"`
	TotalPoints float64         `json:"totalPoints"`
	SubmittedAt string          `json:"submittedAt,omitempty"`
	LockedAt    string          `json:"lockedAt,omitempty"`
	ScoredAt    string          `json:"scoredAt,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

type rosterPickDTO struct {
	PlayerID      string  `json:"playerId"`
	PlayerName    string  `json:"playerName"`
	TeamID        string  `json:"teamId"`
	Price         string  `json:"price"`
	IsCaptain     bool    `json:"isCaptain"`
	IsViceCaptain bool    `json:"isViceCaptain"`
	Points        float64 `json:"points"`
}

func rosterToDTO(ctx context.Context, v roster.Roster) rosterDTO {
	ctx, span := startSpan(ctx, "httpapi.rosterToDTO")
	defer span.End()

	picks := make([]rosterPickDTO, 0, len(v.Picks))
	for _, pick := range v.Picks {
		picks = append(picks, rosterPickDTO{
			PlayerID:      pick.PlayerID,
			PlayerName:    pick.PlayerName,
			TeamID:        pick.TeamID,
			Price:         pick.Price.String(),
			IsCaptain:     pick.IsCaptain,
			IsViceCaptain: pick.IsViceCaptain,
			Points:        pick.Points,
		})
	}

	dto := rosterDTO{
		ID:          v.ID,
		UserID:      v.UserID,
		MatchID:     v.MatchID,
		Sport:       string(v.Sport),
		Name:        v.Name,
		Status:      string(v.Status),
		Picks:       picks,
		TeamValue:   v.TeamValue().String(),
		TotalPoints: v.TotalPoints,
		CreatedAt:   v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   v.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if v.SubmittedAt != nil {
		dto.SubmittedAt = v.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if v.LockedAt != nil {
		dto.LockedAt = v.LockedAt.UTC().Format(time.RFC3339)
	}
	if v.ScoredAt != nil {
		dto.ScoredAt = v.ScoredAt.UTC().Format(time.RFC3339)
	}

	return dto
}
