package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/vidmesh/vidmesh-be/internal/config"
	"github.com/vidmesh/vidmesh-be/internal/worker"
	"github.com/vidmesh/vidmesh-be/internal/worker/converter"
	"github.com/vidmesh/vidmesh-be/shared/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("converter", cfg.Worker.Converter.Mode),
	)

	// Initialize the converter capability. Failure here is fatal for
	// job acceptance but not for the process: the service keeps serving
	// /health and rejects /convert with 503, so orchestrator dispatches
	// fail fast instead of timing out.
	conv := initConverter(cfg, appLogger.Logger)

	notifier := worker.NewNotifier(&worker.NotifierConfig{
		RequestTimeout:    cfg.Worker.Webhook.RequestTimeout,
		RetryAttempts:     cfg.Worker.Webhook.RetryAttempts,
		RetryInterval:     cfg.Worker.Webhook.RetryInterval,
		BackoffMultiplier: cfg.Worker.Webhook.BackoffMultiplier,
	}, appLogger.Logger)

	svc, err := worker.NewService(&worker.Config{
		Logger:     appLogger.Logger,
		Converter:  conv,
		Notifier:   notifier,
		TempDir:    cfg.Worker.TempDir,
		QueueSize:  cfg.Worker.QueueSize,
		JobTimeout: cfg.Worker.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize worker service: %w", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)

	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := worker.SetupRouter(svc, appLogger.Logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Worker service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Stop accepting new conversions, then drain the in-flight job
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initConverter builds the configured converter. Returns nil when the
// capability cannot be initialized.
func initConverter(cfg *config.Config, log *slog.Logger) converter.Converter {
	switch cfg.Worker.Converter.Mode {
	case config.ConverterModeStub:
		stub, err := converter.NewStub(cfg.Worker.ResultDir)
		if err != nil {
			log.Error("Failed to initialize stub converter", slog.Any("error", err))
			return nil
		}
		log.Warn("Using stub converter: artifacts are placeholder meshes")
		return stub

	case config.ConverterModeCommand:
		cmd, err := converter.NewCommand(
			cfg.Worker.Converter.Command,
			cfg.Worker.Converter.Args,
			cfg.Worker.ResultDir,
			log,
		)
		if err != nil {
			log.Error("FATAL: could not initialize reconstruction pipeline; rejecting all jobs",
				slog.Any("error", err),
			)
			return nil
		}
		return cmd

	default:
		log.Error("Unknown converter mode", slog.String("mode", cfg.Worker.Converter.Mode))
		return nil
	}
}
