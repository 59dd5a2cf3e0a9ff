package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fantasy-contest/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
	"go.opentelemetry.io/otel/trace"
)

var internalJobDispatchUnsafeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (h *Handler) RunBootstrapJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunBootstrapJob")
	defer span.End()

	if h.jobOrchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: job orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.jobOrchestrator.Bootstrap(ctx, usecase.JobSweepInput{
		MatchID: req.MatchID,
		Force:   req.Force,
	})
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "bootstrap",
			JobPath:      "/v1/internal/jobs/bootstrap",
			MatchID:      req.MatchID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run bootstrap job failed", "match_id", req.MatchID, "force", req.Force, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "bootstrap",
		JobPath:    "/v1/internal/jobs/bootstrap",
		MatchID:    req.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunDispatchSweepJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunDispatchSweepJob")
	defer span.End()

	if h.jobOrchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: job orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.JobSweepInput{
		MatchID: req.MatchID,
		Force:   req.Force,
	}

	// Scheduler deliveries carry a dispatch id and keep the chain
	// alive. Manual runs without one must not fork a second chain.
	var result usecase.JobSweepResult
	if strings.TrimSpace(req.DispatchID) == "" {
		result, err = h.jobOrchestrator.RunDispatchSweepDirect(ctx, input)
	} else {
		result, err = h.jobOrchestrator.RunDispatchSweep(ctx, input)
	}
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "dispatch-sweep",
			JobPath:      "/v1/internal/jobs/dispatch-sweep",
			MatchID:      req.MatchID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run dispatch sweep job failed", "match_id", req.MatchID, "force", req.Force, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "dispatch-sweep",
		JobPath:    "/v1/internal/jobs/dispatch-sweep",
		MatchID:    req.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunProcessRetriesJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunProcessRetriesJob")
	defer span.End()

	if h.jobOrchestrator == nil {
		writeError(ctx, w, fmt.Errorf("%w: job orchestrator is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.jobOrchestrator.RunRetrySweep(ctx, req.Limit)
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "process-retries",
			JobPath:      "/v1/internal/jobs/process-retries",
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run process retries job failed", "limit", req.Limit, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "process-retries",
		JobPath:    "/v1/internal/jobs/process-retries",
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunStartMatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunStartMatchJob")
	defer span.End()

	if h.scoringService == nil {
		writeError(ctx, w, fmt.Errorf("%w: scoring service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.MatchID) == "" {
		writeError(ctx, w, fmt.Errorf("%w: match_id is required", usecase.ErrInvalidInput))
		return
	}

	result, err := h.scoringService.StartMatch(ctx, req.MatchID)
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "start-match",
			JobPath:      "/v1/internal/jobs/start-match",
			MatchID:      req.MatchID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run start match job failed", "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "start-match",
		JobPath:    "/v1/internal/jobs/start-match",
		MatchID:    req.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, matchStartResultDTO{
		MatchID:         result.MatchID,
		RostersLocked:   result.RostersLocked,
		ContestsStarted: result.ContestsStarted,
	})
}

func (h *Handler) RunSettleJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSettleJob")
	defer span.End()

	if h.contestService == nil {
		writeError(ctx, w, fmt.Errorf("%w: contest service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.ContestID) == "" {
		writeError(ctx, w, fmt.Errorf("%w: contest_id is required", usecase.ErrInvalidInput))
		return
	}

	result, err := h.contestService.Settle(ctx, req.ContestID)
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "settle",
			JobPath:      "/v1/internal/jobs/settle",
			ContestID:    req.ContestID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run settle job failed", "contest_id", req.ContestID, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "settle",
		JobPath:    "/v1/internal/jobs/settle",
		ContestID:  req.ContestID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, settlementResultDTO{
		ContestID:      result.ContestID,
		AlreadySettled: result.AlreadySettled,
		Participants:   result.Participants,
		Winners:        result.Winners,
		Paid:           result.Paid,
		AlreadyPaid:    result.AlreadyPaid,
		Failed:         result.Failed,
	})
}

func (h *Handler) RunCancelMatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunCancelMatchJob")
	defer span.End()

	if h.scoringService == nil {
		writeError(ctx, w, fmt.Errorf("%w: scoring service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.MatchID) == "" {
		writeError(ctx, w, fmt.Errorf("%w: match_id is required", usecase.ErrInvalidInput))
		return
	}

	result, err := h.scoringService.CancelMatch(ctx, req.MatchID, req.Reason)
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "cancel-match",
			JobPath:      "/v1/internal/jobs/cancel-match",
			MatchID:      req.MatchID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run cancel match job failed", "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "cancel-match",
		JobPath:    "/v1/internal/jobs/cancel-match",
		MatchID:    req.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, matchCancellationResultDTO{
		MatchID:           result.MatchID,
		ContestsCancelled: result.ContestsCancelled,
		CancelFailures:    result.CancelFailures,
	})
}

func (h *Handler) RunLockRostersJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunLockRostersJob")
	defer span.End()

	if h.rosterService == nil {
		writeError(ctx, w, fmt.Errorf("%w: roster service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeInternalJobRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.MatchID) == "" {
		writeError(ctx, w, fmt.Errorf("%w: match_id is required", usecase.ErrInvalidInput))
		return
	}

	result, err := h.rosterService.LockByMatch(ctx, req.MatchID)
	if err != nil {
		h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
			JobName:      "lock-rosters",
			JobPath:      "/v1/internal/jobs/lock-rosters",
			MatchID:      req.MatchID,
			Status:       jobscheduler.StatusFailed,
			Payload:      buildInternalJobPayload(req),
			ErrorMessage: err.Error(),
			OccurredAt:   time.Now().UTC(),
		})
		h.logger.WarnContext(ctx, "run lock rosters job failed", "match_id", req.MatchID, "error", err)
		writeError(ctx, w, err)
		return
	}
	h.recordInternalJobDispatch(ctx, req, jobscheduler.DispatchEvent{
		JobName:    "lock-rosters",
		JobPath:    "/v1/internal/jobs/lock-rosters",
		MatchID:    req.MatchID,
		Status:     jobscheduler.StatusCompleted,
		Payload:    buildInternalJobPayload(req),
		OccurredAt: time.Now().UTC(),
	})

	writeSuccess(ctx, w, http.StatusOK, lockResultDTO{
		MatchID: result.MatchID,
		Locked:  result.Locked,
		Skipped: result.Skipped,
	})
}

type internalJobRequest struct {
	DispatchID string `json:"dispatch_id"`
	MatchID    string `json:"match_id"`
	ContestID  string `json:"contest_id"`
	Reason     string `json:"reason"`
	Force      bool   `json:"force"`
	Limit      int    `json:"limit"`
}

type matchStartResultDTO struct {
	MatchID         string `json:"matchId"`
	RostersLocked   int    `json:"rostersLocked"`
	ContestsStarted int    `json:"contestsStarted"`
}

type settlementResultDTO struct {
	ContestID      string `json:"contestId"`
	AlreadySettled bool   `json:"alreadySettled"`
	Participants   int    `json:"participants"`
	Winners        int    `json:"winners"`
	Paid           int    `json:"paid"`
	AlreadyPaid    int    `json:"alreadyPaid"`
	Failed         int    `json:"failed"`
}

type matchCancellationResultDTO struct {
	MatchID           string `json:"matchId"`
	ContestsCancelled int    `json:"contestsCancelled"`
	CancelFailures    int    `json:"cancelFailures"`
}

type lockResultDTO struct {
	MatchID string `json:"matchId"`
	Locked  int    `json:"locked"`
	Skipped int    `json:"skipped"`
}

// decodeInternalJobRequest tolerates an empty body: scheduler providers
// can be configured to POST without payload.
func decodeInternalJobRequest(r *http.Request) (internalJobRequest, error) {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req internalJobRequest
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return internalJobRequest{}, nil
		}
		return internalJobRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}

func (h *Handler) recordInternalJobDispatch(ctx context.Context, req internalJobRequest, event jobscheduler.DispatchEvent) {
	if h.jobDispatchRepo == nil {
		return
	}

	dispatchID := strings.TrimSpace(req.DispatchID)
	if dispatchID == "" {
		ref := req.MatchID
		if strings.TrimSpace(ref) == "" {
			ref = req.ContestID
		}
		dispatchID = buildManualDispatchID(event.JobName, ref, event.OccurredAt)
	}
	event.DispatchID = dispatchID

	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID

	if err := h.jobDispatchRepo.UpsertEvent(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "record internal job dispatch failed",
			"dispatch_id", event.DispatchID,
			"job_name", event.JobName,
			"status", event.Status,
			"error", err,
		)
	}
}

func buildInternalJobPayload(req internalJobRequest) map[string]any {
	payload := map[string]any{}
	if strings.TrimSpace(req.MatchID) != "" {
		payload["match_id"] = req.MatchID
	}
	if strings.TrimSpace(req.ContestID) != "" {
		payload["contest_id"] = req.ContestID
	}
	if strings.TrimSpace(req.Reason) != "" {
		payload["reason"] = req.Reason
	}
	if req.Force {
		payload["force"] = true
	}
	if req.Limit > 0 {
		payload["limit"] = req.Limit
	}
	if strings.TrimSpace(req.DispatchID) != "" {
		payload["dispatch_id"] = req.DispatchID
	}
	return payload
}

func buildManualDispatchID(jobName, ref string, now time.Time) string {
	jobName = sanitizeDispatchPart(jobName)
	ref = sanitizeDispatchPart(ref)
	ts := now.UTC().Format("20060102T150405.000000000Z")
	return "manual-" + jobName + "-" + ref + "-" + ts
}

func sanitizeDispatchPart(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return internalJobDispatchUnsafeRegex.ReplaceAllString(value, "-")
}

func traceMetaFromContext(ctx context.Context) (string, string) {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if !spanContext.IsValid() {
		return "", ""
	}
	return spanContext.TraceID().String(), spanContext.SpanID().String()
}
