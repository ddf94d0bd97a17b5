package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/config"
	"github.com/avelio/skillforge-api/internal/database"
	"github.com/avelio/skillforge-api/internal/handler"
	"github.com/avelio/skillforge-api/internal/lease"
	"github.com/avelio/skillforge-api/internal/middleware"
	"github.com/avelio/skillforge-api/internal/queue"
	"github.com/avelio/skillforge-api/internal/repository"
	"github.com/avelio/skillforge-api/internal/router"
	"github.com/avelio/skillforge-api/internal/service"
	"github.com/avelio/skillforge-api/pkg/analysis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	events := service.NewNopEventPublisher()
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, pipeline events disabled")
		} else {
			defer natsConn.Drain()
			events = service.NewNATSEventPublisher(natsConn, "", logger)
		}
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build analysis provider: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	weakAreaRepo := repository.NewWeakAreaRepository(db)
	growthRepo := repository.NewGrowthRepository(db)
	catalogRepo := repository.NewPracticeCatalogRepository(db)
	attemptRepo := repository.NewPracticeAttemptRepository(db)

	aggregatorCfg := service.DefaultAggregatorConfig()
	if cfg.HealingWindow > 0 {
		aggregatorCfg.HealingWindow = cfg.HealingWindow
	}
	if cfg.SeverityFloor > 0 {
		aggregatorCfg.SeverityFloor = cfg.SeverityFloor
	}
	aggregator := service.NewWeakAreaAggregator(weakAreaRepo, submissionRepo, aggregatorCfg, logger)

	growthCfg := service.DefaultGrowthConfig()
	if cfg.GrowthCacheTTL > 0 {
		growthCfg.CacheTTL = cfg.GrowthCacheTTL
	}
	growthEngine := service.NewGrowthScoreEngine(growthRepo, submissionRepo, attemptRepo, redisClient, growthCfg, logger)

	selector := service.NewPracticeSelector(catalogRepo, logger)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to parse redis url for queue: %v", err)
	}
	queueClient := queue.NewClient(redisOpt, cfg.QueueRetryDelay, logger)
	defer queueClient.Close()

	leaser := service.NewRedisLeaser(lease.NewManager(redisClient, cfg.LeaseTTL, logger))

	orchestrator := service.NewOrchestrator(
		userRepo,
		submissionRepo,
		provider,
		aggregator,
		growthEngine,
		selector,
		leaser,
		queueClient,
		events,
		validate,
		service.OrchestratorConfig{
			Languages:     cfg.AnalysisLanguages,
			PracticeCount: cfg.PracticeSetSize,
		},
		logger,
	)

	practiceService := service.NewPracticeService(userRepo, catalogRepo, aggregator, selector, growthEngine, logger)
	growthReporting := service.NewGrowthReportingService(userRepo, growthEngine, logger)

	worker := queue.NewWorker(redisOpt, orchestrator, cfg.QueueMaxAge, logger)
	if err := worker.Start(); err != nil {
		log.Fatalf("failed to start reprocess worker: %v", err)
	}
	defer worker.Stop()

	submissionHandler := handler.NewSubmissionHandler(orchestrator, logger)
	practiceHandler := handler.NewPracticeHandler(practiceService, validate, logger)
	growthHandler := handler.NewGrowthHandler(growthReporting, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		PracticeHandler:   practiceHandler,
		GrowthHandler:     growthHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildProvider(cfg config.Config, logger zerolog.Logger) (analysis.Provider, error) {
	var base analysis.Provider
	switch cfg.AnalysisProvider {
	case "fixture":
		// Offline mode for local development without an API key.
		base = analysis.NewFixtureProvider()
	default:
		analyzer, err := analysis.NewOpenAIAnalyzer(analysis.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		base = analyzer
	}

	retryCfg := analysis.DefaultRetryConfig()
	if cfg.AnalysisAttempts > 0 {
		retryCfg.MaxAttempts = cfg.AnalysisAttempts
	}
	if cfg.AnalysisAttemptTimeout > 0 {
		retryCfg.AttemptTimeout = cfg.AnalysisAttemptTimeout
	}
	if cfg.AnalysisInitialDelay > 0 {
		retryCfg.InitialDelay = cfg.AnalysisInitialDelay
	}
	if cfg.AnalysisMaxDelay > 0 {
		retryCfg.MaxDelay = cfg.AnalysisMaxDelay
	}

	return analysis.WithRetry(base, retryCfg, logger), nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
