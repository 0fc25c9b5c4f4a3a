package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oracle/internal/adapters/ai"
	"oracle/internal/adapters/config"
	"oracle/internal/adapters/errors/noop"
	"oracle/internal/adapters/errors/sentry"
	"oracle/internal/adapters/kafka"
	"oracle/internal/adapters/postgres"
	"oracle/internal/adapters/redis"
	"oracle/internal/api/health"
	apihttp "oracle/internal/api/http"
	"oracle/internal/events"
	"oracle/internal/metrics"
	repo "oracle/internal/repository/postgres"
	"oracle/internal/scheduler/redisq"
	"oracle/internal/services/consensus"
	resolutionsvc "oracle/internal/services/resolution"
	schedulesvc "oracle/internal/services/schedule"
	"oracle/internal/workers"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Register()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Events
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
	} else {
		log.Info("Kafka publishing disabled")
	}
	publisher := events.NewResolutionPublisher(producer)

	// Answer providers
	registry, extractor, formatter, err := ai.BuildRegistry(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("Failed to build provider registry: %v", err)
	}

	// Repositories
	questionRepo := repo.NewQuestionRepository(pgClient.DB())
	scheduledRepo := repo.NewScheduledRequestRepository(pgClient.DB())

	// Services
	delayQueue := redisq.New(redisClient.Client())
	engine := consensus.NewEngine(consensus.WeightsFromConfig(cfg.Consensus))

	scheduleService := schedulesvc.NewService(scheduledRepo, delayQueue, publisher)
	resolutionService := resolutionsvc.NewService(
		registry.All(),
		extractor,
		formatter,
		engine,
		questionRepo,
		scheduleService,
		publisher,
	)
	scheduleService.SetResolver(resolutionService)

	// Workers
	workerScheduler := workers.NewScheduler()
	workerScheduler.RegisterWorker(workers.NewDispatchWorker(
		delayQueue, scheduleService, cfg.Workers.DispatchInterval, cfg.Workers.DispatchBatchSize))
	workerScheduler.RegisterWorker(workers.NewReconcileWorker(
		scheduledRepo, scheduleService, cfg.Workers.ReconcileInterval, cfg.Workers.ReconcileGrace,
		cfg.Workers.DispatchBatchSize))

	if err := workerScheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// HTTP API
	apiHandler := apihttp.NewHandler(resolutionService, scheduleService, questionRepo)
	healthHandler := health.New(log, pgClient.DB(), redisClient.Client(), cfg.App.Name, version)
	router := apihttp.NewRouter(apiHandler, healthHandler)
	server := apihttp.NewServer(cfg.HTTP, router)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, cfg, server, workerScheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	server *apihttp.Server,
	workerScheduler *workers.Scheduler,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown error: %v", err)
	}

	if err := workerScheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown error: %v", err)
	}

	cancel()

	if errorTracker != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := errorTracker.Flush(flushCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
