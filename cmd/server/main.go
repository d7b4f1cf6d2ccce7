// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

// Command server runs the Lootledger ingestion server: the webhook
// gateway, the scoring pipeline, leaderboards, lootboard rendering,
// notification fanout, and the read API, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/lootledger/lootledger/internal/api"
	"github.com/lootledger/lootledger/internal/auth"
	"github.com/lootledger/lootledger/internal/bus"
	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/database"
	"github.com/lootledger/lootledger/internal/dedupe"
	"github.com/lootledger/lootledger/internal/ingest"
	"github.com/lootledger/lootledger/internal/leaderboard"
	"github.com/lootledger/lootledger/internal/logging"
	"github.com/lootledger/lootledger/internal/lootboard"
	"github.com/lootledger/lootledger/internal/middleware"
	"github.com/lootledger/lootledger/internal/models"
	"github.com/lootledger/lootledger/internal/notify"
	"github.com/lootledger/lootledger/internal/scoring"
	"github.com/lootledger/lootledger/internal/supervisor"
	"github.com/lootledger/lootledger/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Int("ingest_workers", cfg.Ingest.Workers).
		Msg("Configuration loaded")

	if cfg.Security.WebhookSecret == "" {
		logging.Warn().Msg("Webhook secret is empty; submission signatures are not verified")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	artifactStore, err := lootboard.OpenStore(cfg.Lootboard.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open lootboard artifact store")
	}
	defer func() {
		if err := artifactStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artifact store")
		}
	}()

	eventBus, err := bus.New()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}

	// Pipeline stages.
	deduper := dedupe.New(db, cfg.Dedupe.Retention)
	var verifier ingest.Verifier
	if len(cfg.Ingest.DropTable) > 0 {
		verifier = ingest.NewStaticVerifier(cfg.Ingest.DropTable)
		logging.Info().Int("sources", len(cfg.Ingest.DropTable)).Msg("Drop verification enabled")
	}
	processor := ingest.NewProcessor(
		db,
		ingest.NewNormalizer(db, &cfg.Ingest),
		deduper,
		scoring.NewEngine(),
		verifier,
		eventBus,
		cfg,
	)
	pool := ingest.NewPool(processor, cfg.Ingest.Workers, cfg.Ingest.QueueSize)
	sweeper := dedupe.NewSweeper(deduper, cfg.Dedupe.SweepInterval)

	// Read-side services.
	boards := leaderboard.NewService(db)
	lootboards := lootboard.NewService(
		artifactStore, db, lootboard.PNGRenderer{},
		cfg.Lootboard.TopN, cfg.Lootboard.RenderTimeout,
	)
	refresher := lootboard.NewRefresher(lootboards, cfg.Lootboard.RefreshInterval)

	// Notification fanout and dispatch.
	fanout := notify.NewFanout(
		db, db, cfg.Notify.MaxAttempts,
		cfg.Notify.DefaultRateLimit, cfg.Notify.DefaultRateWindow,
	)
	dispatcher := notify.NewDispatcher(db, notify.NewHTTPDeliverer(cfg.Notify.DispatchTimeout), notify.DispatcherConfig{
		Workers:         cfg.Notify.Dispatchers,
		PollInterval:    cfg.Notify.PollInterval,
		DispatchTimeout: cfg.Notify.DispatchTimeout,
		BackoffBase:     cfg.Notify.BackoffBase,
		BackoffMax:      cfg.Notify.BackoffMax,
	})

	hub := websocket.NewHub()

	// Committed-event consumers. Fanout failures are retried by the bus;
	// board invalidation and websocket pushes are best effort.
	eventBus.Subscribe("notification-fanout", func(ctx context.Context, event *models.Event) error {
		_, err := fanout.Process(ctx, event)
		return err
	})
	eventBus.Subscribe("lootboard-invalidate", func(ctx context.Context, event *models.Event) error {
		for _, groupID := range event.GroupIDs {
			for _, period := range leaderboard.PeriodsFor(event.OccurredAt) {
				lootboards.Invalidate(groupID, period)
			}
		}
		return nil
	})
	websocket.SubscribeHub(eventBus, hub)

	// Admin auth. In jwt mode bad security config is a startup failure,
	// not a per-request surprise.
	var (
		jwtManager *auth.JWTManager
		creds      *auth.Credentials
	)
	if cfg.Security.AuthMode == "jwt" {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to configure admin token signing")
		}
		creds, err = auth.NewCredentials(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to configure admin credentials")
		}
	}

	perf := middleware.NewPerformanceMonitor(1024)
	handlers := api.NewHandlers(
		cfg, db, pool, boards, lootboards, hub,
		jwtManager, creds,
		auth.NewLockout(auth.DefaultLockoutConfig()),
		perf,
	)
	server := api.NewServer(&cfg.Server, api.NewRouter(handlers))

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddIngestService(pool)
	tree.AddIngestService(sweeper)
	tree.AddDeliveryService(eventBus)
	tree.AddDeliveryService(dispatcher)
	tree.AddDeliveryService(refresher)
	tree.AddDeliveryService(hub)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor exited with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor exited with error")
			os.Exit(1)
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
