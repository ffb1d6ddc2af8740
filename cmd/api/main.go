package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/config"
	"github.com/noah-isme/sacel-api/internal/database"
	"github.com/noah-isme/sacel-api/internal/grading"
	"github.com/noah-isme/sacel-api/internal/handler"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/router"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/similarity"
	"github.com/noah-isme/sacel-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "sacel-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	db, err := database.ConnectPostgres(context.Background(), cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBPool.MaxOpenConns,
		MaxIdleConns:    cfg.DBPool.MaxIdleConns,
		ConnMaxLifetime: cfg.DBPool.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; caching and redis grade events disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := cache.New(redisClient, logger)

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	peerReviewRepo := repository.NewPeerReviewRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	rubricService := service.NewRubricService(rubricRepo, store, cfg.CacheTTLs.Rubric, validate, activityService, logger)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := rubricService.EnsureDefaults(seedCtx); err != nil {
		cancelSeed()
		logger.Fatal().Err(err).Msg("failed to seed default rubrics")
	}
	cancelSeed()

	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		Analytics:   analyticsRepo,
		Assignments: assignmentRepo,
		Users:       userRepo,
		PeerReviews: peerReviewRepo,
		Cache:       store,
		TTLs: service.AnalyticsTTLs{
			Student:    cfg.CacheTTLs.Student,
			Class:      cfg.CacheTTLs.Class,
			School:     cfg.CacheTTLs.School,
			Assignment: cfg.CacheTTLs.Assignment,
		},
	}, logger)

	events := service.NewGradeEventBus(redisClient, natsConn, cfg.EventChannel, logger)

	gradingService := service.NewGradingService(service.GradingDependencies{
		Submissions: submissionRepo,
		Assignments: assignmentRepo,
		PeerReviews: peerReviewRepo,
		Rubrics:     rubricService,
		Evaluator:   buildEvaluator(cfg, logger),
		Cache:       store,
		Analytics:   analyticsService,
		Events:      events,
		Activity:    activityService,
		Validator:   validate,
		ResultTTL:   cfg.CacheTTLs.Grading,
		PeerWeight:  cfg.PeerWeight,
	}, logger)

	peerReviewService := service.NewPeerReviewService(service.PeerReviewDependencies{
		Reviews:     peerReviewRepo,
		Submissions: submissionRepo,
		Assignments: assignmentRepo,
		Rubrics:     rubricService,
		Cache:       store,
		Analytics:   analyticsService,
		Activity:    activityService,
		Validator:   validate,
		PairingTTL:  cfg.CacheTTLs.PeerReview,
	}, logger)

	plagiarismService := service.NewPlagiarismService(submissionRepo, assignmentRepo, validate, similarity.Options{
		ReportThreshold: cfg.ReportPercent,
		FlagThreshold:   cfg.FlagPercent,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	events.Start(ctx, analyticsService.HandleGradeEvent)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubricService, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, middleware.RateLimit("auto_grade", cfg.AutoGradeLimit, cfg.AutoGradeSpan), logger),
		PeerReviewHandler: handler.NewPeerReviewHandler(peerReviewService, logger),
		PlagiarismHandler: handler.NewPlagiarismHandler(plagiarismService, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analyticsService, validate, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		HealthProbes:      healthProbes(db, redisClient, natsConn),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

// buildEvaluator selects the oracle-backed evaluator when an OpenAI key is configured
// and the local keyword evaluator otherwise.
func buildEvaluator(cfg config.Config, logger zerolog.Logger) grading.Evaluator {
	if !cfg.OracleEnabled() {
		logger.Info().Msg("no oracle configured; grading with the keyword evaluator")
		return grading.KeywordEvaluator{}
	}

	oracle, err := ai.NewOpenAIOracle(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build oracle; grading with the keyword evaluator")
		return grading.KeywordEvaluator{}
	}
	return grading.NewOracleEvaluator(oracle, cfg.OracleTimeout, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return fmt.Errorf("nats connection status %v", natsConn.Status())
			}
			return nil
		}
	}
	return probes
}
