package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/waxswap/backend/internal/audit"
	"github.com/waxswap/backend/internal/auth"
	"github.com/waxswap/backend/internal/config"
	"github.com/waxswap/backend/internal/dashboard"
	"github.com/waxswap/backend/internal/ledger"
	"github.com/waxswap/backend/internal/notify"
	"github.com/waxswap/backend/internal/registry"
	"github.com/waxswap/backend/internal/repository"
	"github.com/waxswap/backend/internal/router"
	"github.com/waxswap/backend/internal/services"
	"github.com/waxswap/backend/internal/sweep"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	tradeRepo := repository.NewTradeRepo(pool)
	grantRepo := repository.NewGrantRepo(pool)

	// Track registry
	registryRepo := registry.NewRepository(pool)
	registrySvc := registry.NewService(registryRepo)

	// Credits ledger
	ledgerSvc := ledger.NewService(accountRepo, creditRepo)

	// Notifications: RabbitMQ when configured, logger otherwise.
	var notifier notify.Gateway
	if cfg.RabbitMQURL != "" {
		amqpGw, err := notify.NewAMQPGateway(cfg.RabbitMQURL)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, notifications fall back to logs", "error", err)
			notifier = notify.NewLogGateway(logger)
		} else {
			notifier = amqpGw
		}
	} else {
		notifier = notify.NewLogGateway(logger)
	}
	defer notifier.Close()

	auditSink := audit.NewPGSink(pool)

	// Trade services
	engine := services.NewSettlementEngine(
		pool, tradeRepo, registrySvc, ledgerSvc, grantRepo, auditSink, notifier, logger,
	)
	lifecycle := services.NewTradeLifecycleService(
		pool, tradeRepo, registrySvc, engine, auditSink, notifier,
		services.Limits{
			DefaultTTL:          cfg.DefaultTradeTTL(),
			MaxTTL:              cfg.MaxTradeTTL(),
			MaxCreditsPerItem:   cfg.MaxCreditsPerItem,
			MaxCashCentsPerItem: cfg.MaxCashCentsPerItem,
		},
		logger,
	)
	sweeper := services.NewExpirationSweeper(
		pool, tradeRepo, registrySvc, auditSink, notifier, cfg.SweepBatchSize, logger,
	)

	// River: periodic expiration sweep
	workers := river.NewWorkers()
	river.AddWorker(workers, sweep.NewExpireTradesWorker(sweeper, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.SweepInterval()),
				func() (river.JobArgs, *river.InsertOpts) {
					return sweep.ExpireTradesJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Auth, registry, dashboard
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	registryHandler := registry.NewHandler(registrySvc, authSvc, logger)
	dashHandler := dashboard.NewHandler(authSvc, accountRepo, creditRepo, grantRepo, logger)

	apiV1Router := router.New(authHandler, registryHandler, dashHandler)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiV1Router)
	RegisterV1Routes(mux, lifecycle, sweeper, ledgerSvc, pool, notifier, authSvc, accountRepo, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the sweep)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
