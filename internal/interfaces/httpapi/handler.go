package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/fantasy-contest/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// Handler carries the HTTP surface over the wallet, contest, roster,
// and match lifecycle services. Route registration lives in server.go;
// every method here assumes the middleware already ran.
type Handler struct {
	ledgerService   *usecase.LedgerService
	contestService  *usecase.ContestService
	rosterService   *usecase.RosterService
	scoringService  *usecase.ScoringService
	catalogService  *usecase.CatalogService
	jobOrchestrator *usecase.JobOrchestratorService
	jobDispatchRepo jobscheduler.Repository
	webhookSecret   string
	logger          *slog.Logger
	validator       *validator.Validate
}

func NewHandler(
	ledgerService *usecase.LedgerService,
	contestService *usecase.ContestService,
	rosterService *usecase.RosterService,
	scoringService *usecase.ScoringService,
	catalogService *usecase.CatalogService,
	jobOrchestrator *usecase.JobOrchestratorService,
	jobDispatchRepo jobscheduler.Repository,
	webhookSecret string,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		ledgerService:   ledgerService,
		contestService:  contestService,
		rosterService:   rosterService,
		scoringService:  scoringService,
		catalogService:  catalogService,
		jobOrchestrator: jobOrchestrator,
		jobDispatchRepo: jobDispatchRepo,
		webhookSecret:   webhookSecret,
		logger:          logger,
		validator:       validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
