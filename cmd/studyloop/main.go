package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop/adapter/cli"
	"github.com/studyloop/studyloop/adapter/cli/predict"
	"github.com/studyloop/studyloop/adapter/cli/schedule"
	"github.com/studyloop/studyloop/adapter/cli/serve"
	"github.com/studyloop/studyloop/adapter/cli/status"
	"github.com/studyloop/studyloop/adapter/cli/train"
	"github.com/studyloop/studyloop/adapter/cli/weights"
	"github.com/studyloop/studyloop/internal/app"
	"github.com/studyloop/studyloop/pkg/config"
	"github.com/studyloop/studyloop/pkg/observability"
)

func main() {
	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// In development without .env, use defaults
		logger.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}

	logCfg := observability.DefaultLogConfig()
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	if cfg.LogLevel != "" {
		logCfg.Level = observability.LogLevel(cfg.LogLevel)
	}
	logger = observability.NewLogger(logCfg)
	cli.SetLogger(logger)

	// Try to initialize the full container
	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
			cliApp = nil
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer container.Close()

		cliApp = &cli.App{
			Config:    cfg,
			Repo:      container.StudyRepo,
			Scheduler: container.Scheduler,
			Engine:    container.Engine,
			Predictor: container.Predictor,
			Training:  container.TrainingPipeline,
			Health:    container.Health,
			Metrics:   container.Metrics,
		}

		if cfg.UserID != "" {
			userID, err := uuid.Parse(cfg.UserID)
			if err != nil {
				logger.Error("invalid STUDYLOOP_USER_ID", "error", err)
				os.Exit(1)
			}
			cliApp.SetCurrentUserID(userID)
		}
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(schedule.Cmd)
	cli.AddCommand(predict.Cmd)
	cli.AddCommand(train.Cmd)
	cli.AddCommand(status.Cmd)
	cli.AddCommand(weights.Cmd)
	cli.AddCommand(serve.Cmd)

	// Execute CLI
	cli.ExecuteContext(ctx)
}
