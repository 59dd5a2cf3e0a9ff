// Package app assembles the service: repositories (instrumented
// Postgres, or the seeded in-memory set), the cache layer, external
// clients, usecase services, and the HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	"github.com/riskibarqy/fantasy-contest/external/cashfree"
	"github.com/riskibarqy/fantasy-contest/internal/config"
	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-contest/internal/domain/ledger"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
	"github.com/riskibarqy/fantasy-contest/internal/domain/player"
	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/account/anubis"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-contest/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fantasy-contest/internal/interfaces/httpapi"
	"github.com/riskibarqy/fantasy-contest/internal/notify"
	basecache "github.com/riskibarqy/fantasy-contest/internal/platform/cache"
	idgen "github.com/riskibarqy/fantasy-contest/internal/platform/id"
	"github.com/riskibarqy/fantasy-contest/internal/platform/logging"
	"github.com/riskibarqy/fantasy-contest/internal/platform/resilience"
	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// App is a built service instance. Close releases the DB handle after
// the HTTP server has drained.
type App struct {
	Server       *http.Server
	Orchestrator *usecase.JobOrchestratorService

	db           *sqlx.DB
	queueEnabled bool
	logger       *slog.Logger
}

type repositories struct {
	ledger     ledger.Repository
	contests   contest.Repository
	rosters    roster.Repository
	matches    match.Repository
	players    player.Repository
	dispatches jobscheduler.Repository
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repos, db, err := buildRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		store := basecache.NewStore(cfg.CacheTTL)
		repos.contests = cache.NewContestRepository(repos.contests, store)
		repos.players = cache.NewPlayerRepository(repos.players, store)
		repos.matches = cache.NewMatchRepository(repos.matches, store)
	}

	idGen := idgen.NewRandomGenerator()
	notifier := notify.NewLog(logger)

	var gateway usecase.PaymentGateway
	if cfg.CashfreeEnabled {
		gateway = cashfree.NewClient(cashfree.ClientConfig{
			BaseURL:      cfg.CashfreeBaseURL,
			ClientID:     cfg.CashfreeClientID,
			ClientSecret: cfg.CashfreeClientSecret,
			TransferMode: cfg.CashfreeTransferMode,
			Timeout:      cfg.CashfreeTimeout,
			MaxRetries:   cfg.CashfreeMaxRetries,
			Logger:       logging.Default(),
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.CashfreeCircuitEnabled,
				FailureThreshold: cfg.CashfreeCircuitFailureCount,
				OpenTimeout:      cfg.CashfreeCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.CashfreeCircuitHalfOpenMaxReq,
			},
		})
	}

	ledgerSvc := usecase.NewLedgerService(repos.ledger, idGen, gateway, notifier, usecase.LedgerConfig{
		RetryWorkers: cfg.LedgerRetryWorkers,
	}, logger)
	contestSvc := usecase.NewContestService(repos.contests, repos.rosters, repos.matches, ledgerSvc, idGen, notifier, usecase.ContestConfig{
		SettlementWorkers: cfg.SettlementWorkers,
	}, logger)
	rosterSvc := usecase.NewRosterService(repos.rosters, repos.players, repos.matches, idGen, notifier, usecase.RosterConfig{}, logger)
	scoringSvc := usecase.NewScoringService(rosterSvc, contestSvc, repos.matches, logger)
	catalogSvc := usecase.NewCatalogService(repos.players, repos.matches)

	var queue usecase.JobQueue
	if cfg.QStashEnabled {
		publisher, err := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.QStashCircuitEnabled,
				FailureThreshold: cfg.QStashCircuitFailureCount,
				OpenTimeout:      cfg.QStashCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
			},
		}, logger)
		if err != nil {
			closeDB(db)
			return nil, fmt.Errorf("build qstash publisher: %w", err)
		}
		queue = publisher
	}

	orchestrator := usecase.NewJobOrchestratorService(repos.matches, repos.contests, ledgerSvc, queue, repos.dispatches, usecase.JobOrchestratorConfig{
		SweepInterval:  cfg.JobScheduleInterval,
		LiveInterval:   cfg.JobLiveInterval,
		PreKickoffLead: cfg.JobPreKickoffLead,
		RetryInterval:  cfg.JobRetryInterval,
		RetryBatch:     cfg.JobRetryBatch,
	}, logger)

	verifier := anubis.NewClient(anubis.ClientConfig{
		BaseURL:         cfg.AnubisBaseURL,
		IntrospectPath:  cfg.AnubisIntrospectPath,
		AdminKey:        cfg.AnubisAdminKey,
		CacheTTL:        cfg.AnubisCacheTTL,
		CacheMaxEntries: cfg.AnubisCacheMaxEntries,
		Timeout:         cfg.AnubisTimeout,
		Logger:          logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.AnubisCircuitEnabled,
			FailureThreshold: cfg.AnubisCircuitFailureCount,
			OpenTimeout:      cfg.AnubisCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.AnubisCircuitHalfOpenMaxReq,
		},
	})

	handler := httpapi.NewHandler(
		ledgerSvc,
		contestSvc,
		rosterSvc,
		scoringSvc,
		catalogSvc,
		orchestrator,
		repos.dispatches,
		cfg.CashfreeWebhookSecret,
		logger,
	)
	router := httpapi.NewRouter(
		handler,
		verifier,
		logger,
		cfg.SwaggerEnabled,
		cfg.CORSAllowedOrigins,
		cfg.InternalJobToken,
		cfg.GeoBlockedCountries,
	)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		closeDB(db)
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:       server,
		Orchestrator: orchestrator,
		db:           db,
		queueEnabled: cfg.QStashEnabled,
		logger:       logger,
	}, nil
}

func buildRepositories(ctx context.Context, cfg config.Config) (repositories, *sqlx.DB, error) {
	if isMemoryDBURL(cfg.DBURL) {
		return repositories{
			ledger:     memory.NewLedgerRepository(),
			contests:   memory.NewContestRepository(),
			rosters:    memory.NewRosterRepository(),
			matches:    memory.NewMatchRepository(memory.SeedMatches()),
			players:    memory.NewPlayerRepository(memory.SeedPlayers()),
			dispatches: memory.NewJobDispatchRepository(),
		}, nil, nil
	}

	db, err := otelsqlx.ConnectContext(ctx, "postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect database: %w", err)
	}

	// Prod databases are provisioned by migration plus operator-owned
	// catalogs; the demo seed only runs elsewhere, and backs off on any
	// non-empty matches table either way.
	if cfg.AppEnv != config.EnvProd {
		if err := postgres.BootstrapSeed(ctx, db); err != nil {
			closeDB(db)
			return repositories{}, nil, fmt.Errorf("bootstrap seed: %w", err)
		}
	}

	return repositories{
		ledger:     postgres.NewLedgerRepository(db),
		contests:   postgres.NewContestRepository(db),
		rosters:    postgres.NewRosterRepository(db),
		matches:    postgres.NewMatchRepository(db),
		players:    postgres.NewPlayerRepository(db),
		dispatches: postgres.NewJobDispatchRepository(db),
	}, db, nil
}

// BootstrapJobs seeds the dispatch and retry chains once at startup.
// Without a queue the scheduler-invoked routes still work when called
// manually, so a failure here is logged rather than fatal.
func (a *App) BootstrapJobs(ctx context.Context) {
	if !a.queueEnabled {
		return
	}

	result, err := a.Orchestrator.Bootstrap(ctx, usecase.JobSweepInput{})
	if err != nil {
		a.logger.ErrorContext(ctx, "bootstrap job chains", "error", err)
		return
	}
	a.logger.InfoContext(ctx, "job chains bootstrapped",
		"queued", result.QueuedCount,
		"operations", result.QueuedOperations,
	)
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func closeDB(db *sqlx.DB) {
	if db != nil {
		_ = db.Close()
	}
}
