package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fairtest/fairtest-backend/internal/config"
	"github.com/fairtest/fairtest-backend/internal/database"
	"github.com/fairtest/fairtest-backend/internal/dedup"
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/handler"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/logger"
	"github.com/fairtest/fairtest-backend/internal/payment"
	"github.com/fairtest/fairtest-backend/internal/registry"
	"github.com/fairtest/fairtest-backend/internal/repository"
	"github.com/fairtest/fairtest-backend/internal/router"
	"github.com/fairtest/fairtest-backend/internal/service"
	"github.com/fairtest/fairtest-backend/internal/validator"
	"github.com/fairtest/fairtest-backend/internal/worker"
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
		Str("registry_suffix", cfg.RegistrySuffix).
		Msg("Starting FairTest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Schema ────────────────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

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
	evaluatorRepo := repository.NewEvaluatorRepository(pool)
	answerKeyRepo := repository.NewAnswerKeyRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	resultRepo := repository.NewResultRepository(pool)

	// ─── Domain Components ─────────────────────────────────────────────
	ledgerStore := ledger.NewPostgresStore(pool)
	reg := registry.New(rdb, config.CacheKey.RegistryKey(cfg.RegistrySuffix), cfg.RegistrySuffix)
	detector, err := dedup.New(rdb, cfg.DedupCacheSize, cfg.DedupTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create resubmission detector")
	}
	network := payment.NewNetwork(
		payment.NewRedisStore(rdb, config.CacheKey.PaymentSessionKey, cfg.PaymentSessionTTL),
		cfg.PaymentRetries,
		cfg.PaymentBaseDelay,
		log,
	)
	evaluator := evaluation.New(evaluation.Config{
		PartialCredit:   cfg.EvalPartialCredit,
		NegativeMarking: cfg.EvalNegativeMarking,
		MinTotalScore:   cfg.EvalMinTotal,
		Precision:       cfg.EvalPrecision,
	})

	// ─── Background Workers ───────────────────────────────────────────
	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	draftWorker := worker.NewDraftWorker(pool, rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	evaluatorService := service.NewEvaluatorService(evaluatorRepo)
	answerKeyService := service.NewAnswerKeyService(answerKeyRepo, rdb, log)
	submissionService := service.NewSubmissionService(answerKeyService, submissionRepo, ledgerStore, detector, evaluator, resultWorker, log)
	evaluationService := service.NewEvaluationService(resultRepo, submissionRepo, ledgerStore, evaluator, log)
	registryService := service.NewRegistryService(reg, ledgerStore, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, evaluatorService),
		Registry:   handler.NewRegistryHandler(registryService),
		Submission: handler.NewSubmissionHandler(submissionService, evaluationService),
		Payment:    handler.NewPaymentHandler(network),
		Evaluator:  handler.NewEvaluatorHandler(answerKeyService, evaluationService),
		WS:         handler.NewWSHandler(rdb, draftWorker, submissionService, log, cfg.AllowedOrigins),
		System:     handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	for _, start := range []func(context.Context){resultWorker.Start, draftWorker.Start} {
		workers.Add(1)
		go func(start func(context.Context)) {
			defer workers.Done()
			start(workerCtx)
		}(start)
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every answer key into Redis BEFORE accepting traffic.
	if err := answerKeyService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
