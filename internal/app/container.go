// Package app wires configuration, storage, the scoring engine, the
// predictor, and the training pipeline into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyloop/studyloop/internal/ml/artifact"
	"github.com/studyloop/studyloop/internal/ml/predictor"
	"github.com/studyloop/studyloop/internal/ml/training"
	"github.com/studyloop/studyloop/internal/scheduling/application/services"
	"github.com/studyloop/studyloop/internal/scheduling/domain"
	"github.com/studyloop/studyloop/internal/scheduling/infrastructure/persistence"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/database"
	_ "github.com/studyloop/studyloop/internal/shared/infrastructure/database/postgres" // driver registration
	"github.com/studyloop/studyloop/internal/shared/infrastructure/database/sqlite"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/eventbus"
	"github.com/studyloop/studyloop/internal/shared/infrastructure/migrations"
	"github.com/studyloop/studyloop/pkg/config"
	"github.com/studyloop/studyloop/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Publishers
	EventPublisher eventbus.Publisher

	// Scheduling
	StudyRepo domain.StudyRepository
	Engine    *services.PriorityEngine
	Scheduler *services.Scheduler

	// Prediction and training
	ArtifactStore    *artifact.Store
	Predictor        *predictor.Service
	TrainingPipeline *training.Pipeline

	Metrics observability.Metrics

	// Health
	Health *observability.HealthRegistry
}

// NewContainer creates a fully wired container. In development, Redis and
// RabbitMQ degrade to local fallbacks when unreachable; in production they
// are required when configured.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
		Health: observability.NewHealthRegistry(),
	}

	// Database: PostgreSQL when a URL is configured, SQLite otherwise.
	conn, err := database.NewConnection(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	logger.Info("connected to database", "driver", string(c.DBDriver))

	// SQLite schema is applied automatically; PostgreSQL schemas are managed
	// by external migration tooling.
	if c.DBDriver == database.DriverSQLite {
		if sqliteConn, ok := conn.(*sqlite.Connection); ok {
			if err := migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
	}

	// Redis backs the distributed training lock (optional in development).
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				conn.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, training lock will be process-local", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				if !cfg.IsDevelopment() {
					conn.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, training lock will be process-local", "error", err)
			} else {
				c.RedisClient = redisClient
				logger.Info("connected to Redis")
			}
		}
	}

	// Event publisher for model lifecycle events.
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.closePartial()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using noop publisher")
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.EventPublisher = publisher
		}
	} else {
		c.EventPublisher = eventbus.NewNoopPublisher(logger)
	}

	// Repository, wrapped with a circuit breaker.
	c.StudyRepo = persistence.NewBreakerRepository(
		persistence.NewStudyRepository(conn),
		persistence.DefaultBreakerConfig(),
		logger,
	)

	// Scoring engine and predictor.
	c.Engine = services.NewPriorityEngine(services.StrategyForName(cfg.ScoringStrategy))
	if len(cfg.ScoringWeights) > 0 {
		if err := c.Engine.SetWeights(services.Weights(cfg.ScoringWeights)); err != nil {
			logger.Warn("ignoring scoring weight overrides", "error", err)
		}
	}
	c.ArtifactStore = artifact.NewStore(cfg.ModelDir, logger)
	c.Predictor = predictor.NewService(c.ArtifactStore, logger)

	loaded, err := c.Predictor.LoadFromDisk()
	if err != nil {
		logger.Warn("failed to load persisted model", "error", err)
	} else if loaded {
		if err := eventbus.PublishJSON(ctx, c.EventPublisher, eventbus.RoutingKeyModelLoaded, eventbus.ModelLoadedEvent{
			ModelVersion: c.Predictor.Version(),
			LoadedAt:     time.Now().UTC(),
		}); err != nil {
			logger.Warn("model.loaded publish failed", "error", err)
		}
	}

	c.Scheduler = services.NewScheduler(c.StudyRepo, c.Engine, c.Predictor, logger)

	// Training pipeline with a distributed lock when Redis is available.
	var lock training.Lock
	if c.RedisClient != nil {
		lock = training.NewRedisLock(c.RedisClient, cfg.TrainingLockTTL)
	} else {
		lock = training.NewLocalLock()
	}

	smokeUserID := uuid.Nil
	if cfg.UserID != "" {
		if id, err := uuid.Parse(cfg.UserID); err == nil {
			smokeUserID = id
		} else {
			logger.Warn("invalid user id in configuration", "error", err)
		}
	}

	c.TrainingPipeline = training.NewPipeline(
		c.StudyRepo,
		c.ArtifactStore,
		c.Predictor,
		c.Scheduler,
		c.EventPublisher,
		lock,
		nil,
		training.Config{
			MinRows:         cfg.MinTrainingRows,
			ValidationSplit: cfg.ValidationSplit,
			SmokeUserID:     smokeUserID,
		},
		logger,
	)

	if cfg.IsDevelopment() {
		c.Metrics = observability.NewInMemoryMetrics()
	} else {
		c.Metrics = observability.NoopMetrics{}
	}
	c.TrainingPipeline.WithMetrics(c.Metrics)

	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	if c.RedisClient != nil {
		c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	c.Health.Register("model", observability.ModelHealthChecker(c.Predictor.Available))

	return c, nil
}

// closePartial releases the resources acquired so far during construction.
func (c *Container) closePartial() {
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
	if c.DBConn != nil {
		c.DBConn.Close()
	}
}

// Close releases all container resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed")
		}
	}
}
