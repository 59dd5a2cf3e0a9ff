// Package metrics provides Prometheus instrumentation for the contest engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts ledger transitions by type and resulting status.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fantasy_contest_transactions_total",
		Help: "Ledger transactions by type and resulting status",
	}, []string{"type", "status"})

	// InsufficientFundsTotal counts debits rejected for lack of balance.
	InsufficientFundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fantasy_contest_insufficient_funds_total",
		Help: "Wallet debits rejected because the balance was too low",
	})

	// ContestJoinsTotal counts join attempts by outcome.
	ContestJoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fantasy_contest_contest_joins_total",
		Help: "Contest join attempts by outcome",
	}, []string{"outcome"})

	// SettlementPayoutsTotal counts winning credits paid during settlement.
	SettlementPayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fantasy_contest_settlement_payouts_total",
		Help: "Prize credits paid out by contest settlement",
	})

	// RetrySweepTotal counts transactions picked up by the retry sweep.
	RetrySweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fantasy_contest_retry_sweep_total",
		Help: "Transactions processed by the retry sweep, by outcome",
	}, []string{"outcome"})

	// RostersScoredTotal counts rosters scored per sport.
	RostersScoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fantasy_contest_rosters_scored_total",
		Help: "Rosters scored, by sport",
	}, []string{"sport"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
