package httpapi

import (
	"net/http"

	"github.com/riskibarqy/fantasy-contest/internal/platform/metrics"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicDomainRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/matches", handler.ListMatches)
	mux.HandleFunc("GET /v1/matches/upcoming", handler.ListUpcomingMatches)
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatch)
	mux.HandleFunc("GET /v1/matches/{matchID}/players", handler.ListMatchPlayers)
	mux.HandleFunc("GET /v1/sports/{sport}/players", handler.ListPlayersBySport)
	mux.HandleFunc("GET /v1/players/{playerID}", handler.GetPlayer)
	mux.HandleFunc("GET /v1/contests", handler.ListContests)
	mux.HandleFunc("GET /v1/contests/{contestID}", handler.GetContest)
	mux.HandleFunc("GET /v1/contests/{contestID}/leaderboard", handler.GetContestLeaderboard)
}

// Webhooks authenticate through their signature, not a bearer token.
func registerWebhookRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/webhooks/cashfree", handler.HandleCashfreeWebhook)
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier, blockedCountries []string) {
	registerAuthorizedWalletRoutes(mux, handler, verifier, blockedCountries)
	registerAuthorizedContestRoutes(mux, handler, verifier, blockedCountries)
	registerAuthorizedRosterRoutes(mux, handler, verifier)
}

func registerAuthorizedWalletRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier, blockedCountries []string) {
	mux.Handle("GET /v1/wallet", RequireAuth(verifier, http.HandlerFunc(handler.GetWallet)))
	mux.Handle("GET /v1/wallet/transactions", RequireAuth(verifier, http.HandlerFunc(handler.ListWalletTransactions)))
	mux.Handle("GET /v1/wallet/transactions/{transactionID}", RequireAuth(verifier, http.HandlerFunc(handler.GetWalletTransaction)))
	mux.Handle("GET /v1/wallet/transactions/by-reference/{reference}", RequireAuth(verifier, http.HandlerFunc(handler.GetWalletTransactionByReference)))

	// Money movement is geo gated before the token is even verified,
	// embargoed regions fail fast without an account service call.
	mux.Handle("POST /v1/wallet/deposits", RequireGeoCompliance(blockedCountries, RequireAuth(verifier, http.HandlerFunc(handler.CreateDeposit))))
	mux.Handle("POST /v1/wallet/withdrawals", RequireGeoCompliance(blockedCountries, RequireAuth(verifier, http.HandlerFunc(handler.CreateWithdrawal))))
	mux.Handle("POST /v1/wallet/transfers", RequireGeoCompliance(blockedCountries, RequireAuth(verifier, http.HandlerFunc(handler.CreateTransfer))))
}

func registerAuthorizedContestRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier, blockedCountries []string) {
	mux.Handle("POST /v1/contests", RequireAuth(verifier, http.HandlerFunc(handler.CreateContest)))
	mux.Handle("GET /v1/contests/me/entries", RequireAuth(verifier, http.HandlerFunc(handler.ListMyContestEntries)))
	mux.Handle("POST /v1/contests/{contestID}/join", RequireGeoCompliance(blockedCountries, RequireAuth(verifier, http.HandlerFunc(handler.JoinContest))))
	mux.Handle("POST /v1/contests/{contestID}/leave", RequireAuth(verifier, http.HandlerFunc(handler.LeaveContest)))
}

func registerAuthorizedRosterRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/rosters", RequireAuth(verifier, http.HandlerFunc(handler.CreateRoster)))
	mux.Handle("GET /v1/rosters/me", RequireAuth(verifier, http.HandlerFunc(handler.ListMyRosters)))
	mux.Handle("GET /v1/rosters/{rosterID}", RequireAuth(verifier, http.HandlerFunc(handler.GetRoster)))
	mux.Handle("POST /v1/rosters/{rosterID}/players", RequireAuth(verifier, http.HandlerFunc(handler.AddRosterPlayer)))
	mux.Handle("DELETE /v1/rosters/{rosterID}/players/{playerID}", RequireAuth(verifier, http.HandlerFunc(handler.RemoveRosterPlayer)))
	mux.Handle("PUT /v1/rosters/{rosterID}/captain", RequireAuth(verifier, http.HandlerFunc(handler.SetRosterCaptain)))
	mux.Handle("PUT /v1/rosters/{rosterID}/vice-captain", RequireAuth(verifier, http.HandlerFunc(handler.SetRosterViceCaptain)))
	mux.Handle("POST /v1/rosters/{rosterID}/submit", RequireAuth(verifier, http.HandlerFunc(handler.SubmitRoster)))
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	registerInternalJobRoutes(mux, handler, internalJobToken)
	registerInternalMatchRoutes(mux, handler, internalJobToken)
	registerInternalAdminRoutes(mux, handler, internalJobToken)
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/bootstrap", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunBootstrapJob)))
	mux.Handle("POST /v1/internal/jobs/dispatch-sweep", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunDispatchSweepJob)))
	mux.Handle("POST /v1/internal/jobs/process-retries", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunProcessRetriesJob)))
	mux.Handle("POST /v1/internal/jobs/start-match", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunStartMatchJob)))
	mux.Handle("POST /v1/internal/jobs/settle", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunSettleJob)))
	mux.Handle("POST /v1/internal/jobs/cancel-match", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunCancelMatchJob)))
	mux.Handle("POST /v1/internal/jobs/lock-rosters", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunLockRostersJob)))
}

func registerInternalMatchRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/matches/{matchID}/performance", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ApplyMatchPerformance)))
	mux.Handle("POST /v1/internal/matches/{matchID}/complete", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CompleteMatch)))
}

func registerInternalAdminRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/ledger/grants", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CreateGrant)))
	mux.Handle("POST /v1/internal/ledger/transactions/{transactionID}/reverse", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ReverseTransaction)))
	mux.Handle("POST /v1/internal/ledger/transactions/{transactionID}/cancel", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CancelTransaction)))
	mux.Handle("POST /v1/internal/ledger/transactions/{transactionID}/retry", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RetryTransaction)))
	mux.Handle("POST /v1/internal/contests/{contestID}/cancel", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CancelContest)))
}
