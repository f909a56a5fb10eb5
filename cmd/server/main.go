package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/mathcourse-portal/internal/cache"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/database"
	"github.com/stemsi/mathcourse-portal/internal/handler"
	"github.com/stemsi/mathcourse-portal/internal/logger"
	"github.com/stemsi/mathcourse-portal/internal/middleware"
	"github.com/stemsi/mathcourse-portal/internal/repository"
	"github.com/stemsi/mathcourse-portal/internal/router"
	"github.com/stemsi/mathcourse-portal/internal/service"
	"github.com/stemsi/mathcourse-portal/internal/validator"
	"github.com/stemsi/mathcourse-portal/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("Starting math course admin portal")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	adminRepo := repository.NewAdminRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	authEventRepo := repository.NewAuthEventRepository(pool)

	// ─── Initialize Redis Components ───────────────────────────────────
	sessionCache := cache.NewSessionCache(rdb)
	sessionEvents := cache.NewSessionEvents(rdb)
	auditQueue := cache.NewAuditQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	credentialService := service.NewCredentialService(service.CredentialDeps{
		Admins:   adminRepo,
		Sessions: sessionRepo,
		Cache:    sessionCache,
		Limiter:  cache.NewAttemptLimiter(rdb),
		Events:   sessionEvents,
		Audit:    auditQueue,
	}, cfg, log)
	apiKeyService := service.NewAPIKeyService(cfg)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register HTTP metrics")
	}

	limiter := middleware.NewRateLimiter(cfg.IPRateLimit, time.Minute)
	limiter.StartCleanup(ctx)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		RPC:  handler.NewRPCHandler(credentialService, log),
		Auth: handler.NewAuthHandler(credentialService, log),
		WS:   handler.NewWSHandler(sessionEvents, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(router.Deps{
		APIKeys:  apiKeyService,
		Sessions: credentialService,
		Limiter:  limiter,
		Metrics:  metrics,
	}, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server and Background Workers ──────────────────────────
	// Workers get their own context so they keep draining the audit queue
	// until the HTTP server has stopped producing events.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var workers errgroup.Group
	workers.Go(func() error {
		worker.NewAuditWorker(auditQueue, authEventRepo, log).Start(workerCtx)
		return nil
	})
	workers.Go(func() error {
		worker.NewSessionSweeper(credentialService, cfg.SessionSweepInterval, log).Start(workerCtx)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// 1. Stop accepting new HTTP requests (5s timeout).
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("HTTP server error")
	}

	// 2. Stop background workers and wait for the audit queue to drain.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
