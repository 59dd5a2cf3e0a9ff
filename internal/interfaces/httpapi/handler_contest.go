package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

func (h *Handler) ListContests(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListContests")
	defer span.End()

	query := r.URL.Query()

	statuses, err := parseContestStatuses(query.Get("status"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := parsePositiveIntQuery(query.Get("limit"), "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	offset, err := parseNonNegativeIntQuery(query.Get("offset"), "offset")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	contests, err := h.contestService.ListContests(ctx, usecase.ListContestsInput{
		MatchID:  strings.TrimSpace(query.Get("match_id")),
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "list contests failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]contestDTO, 0, len(contests))
	for _, c := range contests {
		items = append(items, contestToDTO(ctx, c))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetContest")
	defer span.End()

	contestID := strings.TrimSpace(r.PathValue("contestID"))
	c, err := h.contestService.Contest(ctx, contestID)
	if err != nil {
		h.logger.WarnContext(ctx, "get contest failed", "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, contestToDTO(ctx, c))
}

func (h *Handler) GetContestLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetContestLeaderboard")
	defer span.End()

	contestID := strings.TrimSpace(r.PathValue("contestID"))
	c, entries, err := h.contestService.Leaderboard(ctx, contestID)
	if err != nil {
		h.logger.WarnContext(ctx, "get contest leaderboard failed", "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]participantDTO, 0, len(entries))
	for _, p := range entries {
		items = append(items, participantToDTO(ctx, p))
	}

	writeSuccess(ctx, w, http.StatusOK, leaderboardDTO{
		Contest: contestToDTO(ctx, c),
		Entries: items,
	})
}

func (h *Handler) CreateContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateContest")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	var req createContestRequest
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

	distribution := make([]contest.PrizeSlot, 0, len(req.PrizeDistribution))
	for _, slot := range req.PrizeDistribution {
		distribution = append(distribution, contest.PrizeSlot{
			Rank:       slot.Rank,
			Prize:      slot.Prize,
			Percentage: slot.Percentage,
		})
	}

	c, err := h.contestService.CreateContest(ctx, usecase.CreateContestInput{
		Name:                 req.Name,
		Description:          req.Description,
		MatchID:              req.MatchID,
		EntryType:            contest.EntryType(req.EntryType),
		EntryFee:             req.EntryFee,
		PrizePool:            req.PrizePool,
		TotalSpots:           req.TotalSpots,
		PrizeDistribution:    distribution,
		RegistrationDeadline: req.RegistrationDeadline,
		CreatedBy:            principal.UserID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "create contest failed", "user_id", principal.UserID, "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, contestToDTO(ctx, c))
}

func (h *Handler) JoinContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.JoinContest")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	contestID := strings.TrimSpace(r.PathValue("contestID"))

	var req joinContestRequest
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

	result, err := h.contestService.Join(ctx, usecase.JoinContestInput{
		ContestID: contestID,
		UserID:    principal.UserID,
		TeamID:    req.TeamID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "join contest failed", "user_id", principal.UserID, "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	dto := joinResultDTO{
		Contest:     contestToDTO(ctx, result.Contest),
		Participant: participantToDTO(ctx, result.Participant),
	}
	if result.EntryFee != nil {
		fee := transactionToDTO(ctx, *result.EntryFee)
		dto.EntryFee = &fee
	}

	writeSuccess(ctx, w, http.StatusCreated, dto)
}

func (h *Handler) LeaveContest(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LeaveContest")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	contestID := strings.TrimSpace(r.PathValue("contestID"))

	var req leaveContestRequest
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

	refund, err := h.contestService.Leave(ctx, usecase.LeaveContestInput{
		ContestID: contestID,
		UserID:    principal.UserID,
		TeamID:    req.TeamID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "leave contest failed", "user_id", principal.UserID, "contest_id", contestID, "error", err)
		writeError(ctx, w, err)
		return
	}

	dto := leaveResultDTO{ContestID: contestID}
	if refund != nil {
		tx := transactionToDTO(ctx, *refund)
		dto.Refund = &tx
	}

	writeSuccess(ctx, w, http.StatusOK, dto)
}

func (h *Handler) ListMyContestEntries(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMyContestEntries")
	defer span.End()

	principal, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return
	}

	entries, err := h.contestService.UserEntries(ctx, principal.UserID)
	if err != nil {
		h.logger.WarnContext(ctx, "list contest entries failed", "user_id", principal.UserID, "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]participantDTO, 0, len(entries))
	for _, p := range entries {
		items = append(items, participantToDTO(ctx, p))
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func parseContestStatuses(raw string) ([]contest.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]contest.Status, 0, len(parts))
	for _, part := range parts {
		candidate := contest.Status(strings.ToLower(strings.TrimSpace(part)))
		if candidate == "" {
			continue
		}
		statuses = append(statuses, candidate)
	}
	return statuses, nil
}

type createContestRequest struct {
	Name                 string           `json:"name" validate:"required,max=100"`
	Description          string           `json:"description" validate:"max=500"`
	MatchID              string           `json:"matchId" validate:"required"`
	EntryType            string           `json:"entryType" validate:"omitempty,oneof=single multiple"`
	EntryFee             decimal.Decimal  `json:"entryFee"`
	PrizePool            decimal.Decimal  `json:"prizePool"`
	TotalSpots           int              `json:"totalSpots" validate:"required,min=2"`
	PrizeDistribution    []prizeSlotInput `json:"prizeDistribution" validate:"required,min=1,dive"`
	RegistrationDeadline time.Time        `json:"registrationDeadline"`
}

type prizeSlotInput struct {
	Rank       int             `json:"rank" validate:"required,min=1"`
	Prize      decimal.Decimal `json:"prize"`
	Percentage float64         `json:"percentage" validate:"min=0,max=100"`
}

type joinContestRequest struct {
	TeamID string `json:"teamId" validate:"required"`
}

type leaveContestRequest struct {
	TeamID string `json:"teamId" validate:"required"`
}

type contestDTO struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	MatchID              string          `json:"matchId"`
	Sport                string          `json:"sport"`
	Status               string          `json:"status"`
	EntryType            string          `json:"entryType"`
	EntryFee             string          `json:"entryFee"`
	PrizePool            string          `json:"prizePool"`
	TotalSpots           int             `json:"totalSpots"`
	FilledSpots          int             `json:"filledSpots"`
	PrizeDistribution    []prizeSlotDTO  `json:"prizeDistribution"`
	RegistrationDeadline string          `json:"registrationDeadline"`
	Stats                contestStatsDTO `json:"stats"`
	CreatedBy            string          `json:"createdBy,omitempty"`
	SettledAt            string          `json:"settledAt,omitempty"`
	CancelledAt          string          `json:"cancelledAt,omitempty"`
	CreatedAt            string          `json:"createdAt"`
	UpdatedAt            string          `json:"updatedAt"`
}

type prizeSlotDTO struct {
	Rank       int     `json:"rank"`
	Prize      string  `json:"prize"`
	Percentage float64 `json:"percentage"`
}

type contestStatsDTO struct {
	AveragePoints float64 `json:"averagePoints"`
	HighestPoints float64 `json:"highestPoints"`
	LowestPoints  float64 `json:"lowestPoints"`
}

type participantDTO struct {
	ID        string  `json:"id"`
	ContestID string  `json:"contestId"`
	UserID    string  `json:"userId"`
	TeamID    string  `json:"teamId"`
	EntryTime string  `json:"entryTime"`
	Points    float64 `json:"points"`
	Rank      int     `json:"rank"`
	Prize     string  `json:"prize"`
	IsWinner  bool    `json:"isWinner"`
	PayoutRef string  `json:"payoutRef,omitempty"`
}

type leaderboardDTO struct {
	Contest contestDTO       `json:"contest"`
	Entries []participantDTO `json:"entries"`
}

type joinResultDTO struct {
	Contest     contestDTO      `json:"contest"`
	Participant participantDTO  `json:"participant"`
	EntryFee    *transactionDTO `json:"entryFee,omitempty"`
}

type leaveResultDTO struct {
	ContestID string          `json:"contestId"`
	Refund    *transactionDTO `json:"refund,omitempty"`
}

func contestToDTO(ctx context.Context, v contest.Contest) contestDTO {
	ctx, span := startSpan(ctx, "httpapi.contestToDTO")
	defer span.End()

	distribution := make([]prizeSlotDTO, 0, len(v.PrizeDistribution))
	for _, slot := range v.PrizeDistribution {
		distribution = append(distribution, prizeSlotDTO{
			Rank:       slot.Rank,
			Prize:      slot.Prize.String(),
			Percentage: slot.Percentage,
		})
	}

	dto := contestDTO{
		ID:                   v.ID,
		Name:                 v.Name,
		Description:          v.Description,
		MatchID:              v.MatchID,
		Sport:                string(v.Sport),
		Status:               string(v.Status),
		EntryType:            string(v.EntryType),
		EntryFee:             v.EntryFee.String(),
		PrizePool:            v.PrizePool.String(),
		TotalSpots:           v.TotalSpots,
		FilledSpots:          v.FilledSpots,
		PrizeDistribution:    distribution,
		RegistrationDeadline: v.RegistrationDeadline.UTC().Format(time.RFC3339),
		Stats: contestStatsDTO{
			AveragePoints: v.Stats.AveragePoints,
			HighestPoints: v.Stats.HighestPoints,
			LowestPoints:  v.Stats.LowestPoints,
		},
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: v.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if v.SettledAt != nil {
		dto.SettledAt = v.SettledAt.UTC().Format(time.RFC3339)
	}
	if v.CancelledAt != nil {
		dto.CancelledAt = v.CancelledAt.UTC().Format(time.RFC3339)
	}

	return dto
}

func participantToDTO(ctx context.Context, v contest.Participant) participantDTO {
	ctx, span := startSpan(ctx, "httpapi.participantToDTO")
	defer span.End()

	return participantDTO{
		ID:        v.ID,
		ContestID: v.ContestID,
		UserID:    v.UserID,
		TeamID:    v.TeamID,
		EntryTime: v.EntryTime.UTC().Format(time.RFC3339),
		Points:    v.Points,
		Rank:      v.Rank,
		Prize:     v.Prize.String(),
		IsWinner:  v.IsWinner,
		PayoutRef: v.PayoutRef,
	}
}
