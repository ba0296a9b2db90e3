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

	"github.com/vidmesh/vidmesh-be/internal/api/artifact"
	"github.com/vidmesh/vidmesh-be/internal/api/dispatch"
	"github.com/vidmesh/vidmesh-be/internal/api/handler"
	"github.com/vidmesh/vidmesh-be/internal/api/jobstore"
	"github.com/vidmesh/vidmesh-be/internal/api/manager"
	"github.com/vidmesh/vidmesh-be/internal/api/router"
	"github.com/vidmesh/vidmesh-be/internal/api/sweep"
	"github.com/vidmesh/vidmesh-be/internal/config"
	"github.com/vidmesh/vidmesh-be/shared/logger"
	"github.com/vidmesh/vidmesh-be/shared/postgresql"
	"github.com/vidmesh/vidmesh-be/shared/redis"
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
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("backend", cfg.Storage.Backend),
	)

	// Initialize the job store backend
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := initJobStore(ctx, cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer closeStore()

	// Initialize the artifact staging area
	files, err := artifact.NewStore(cfg.Storage.UploadDir, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	// Wire the job manager and dispatcher
	jobManager := manager.New(store, files, appLogger.Logger)

	dispatcher := dispatch.New(&dispatch.Config{
		WorkerURL:         cfg.Dispatch.WorkerURL,
		CallbackURL:       cfg.Dispatch.CallbackURL,
		RequestTimeout:    cfg.Dispatch.RequestTimeout,
		RetryAttempts:     cfg.Dispatch.RetryAttempts,
		RetryInterval:     cfg.Dispatch.RetryInterval,
		BackoffMultiplier: cfg.Dispatch.BackoffMultiplier,
	}, jobManager, appLogger.Logger)

	// Start the orphan sweeper when a reclaim policy is configured
	sweeper := sweep.New(&sweep.Config{
		Interval:         cfg.Storage.Sweep.Interval,
		MaxProcessingAge: cfg.Storage.Sweep.MaxProcessingAge,
		ResultTTL:        cfg.Storage.Sweep.ResultTTL,
	}, jobManager, appLogger.Logger)
	if sweeper.Enabled() {
		go sweeper.Run(ctx)
	}

	// Initialize router
	r := initRouter(cfg, appLogger.Logger, jobManager, files, dispatcher)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
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

// initJobStore selects and connects the configured job store backend.
// The returned close function releases the backend's connections.
func initJobStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (jobstore.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("Using in-memory job store: all jobs are lost on restart")
		return jobstore.NewMemoryStore(), func() {}, nil

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, &redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return jobstore.NewRedisStore(client), func() { client.Close() }, nil

	case config.BackendPostgres:
		client, err := postgresql.NewClient(&postgresql.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return jobstore.NewPostgresStore(client), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, log *slog.Logger, jobManager *manager.Manager, files *artifact.Store, dispatcher *dispatch.Dispatcher) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:        log,
		Manager:       jobManager,
		Files:         files,
		Dispatcher:    dispatcher,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}

	return router.SetupRouter(handlerDeps)
}
