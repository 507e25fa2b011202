package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/comment-pulse/internal/config"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/handlers"
	"github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/middleware"
	"github.com/benvon/comment-pulse/internal/progress"
	"github.com/benvon/comment-pulse/internal/queue"
	"github.com/benvon/comment-pulse/internal/services/oidc"
	"github.com/benvon/comment-pulse/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const (
	serviceName = "comment-pulse-api"
	version     = "1.0.0"

	dlqGCInterval      = time.Hour
	dlqGCRetention     = 24 * time.Hour
	staleAnalysisAfter = 2 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	openAPIPath := flag.String("openapi", handlers.DefaultOpenAPIPath, "Path to the OpenAPI document")
	flag.Parse()

	if err := config.LoadEnvFile(config.EnvFilePath()); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateAuth(); err != nil {
		log.Fatalf("Invalid auth configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	zapLogger, err := logger.New(logger.Format(cfg.LogFormat), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, *openAPIPath, zapLogger); err != nil {
		zapLogger.Error("server_failed", zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, openAPIPath string, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_server",
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEnabled && cfg.OTELEndpoint != "", serviceName, cfg.OTELEndpoint, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	zapLogger.Info("connected_to_database")

	// Redis backs rate limiting and live progress. Without it the API still
	// serves, reporting progress from the stored post state.
	var redisClient *redis.Client
	var progressStore progress.Store
	if client, err := progress.Connect(ctx, cfg.RedisURL); err != nil {
		zapLogger.Warn("redis_unavailable_rate_limit_and_progress_disabled", zap.Error(err))
	} else {
		redisClient = client
		progressStore = progress.NewRedisStore(client, progress.DefaultTTL)
		defer func() { _ = client.Close() }()
		zapLogger.Info("connected_to_redis")
	}

	jobQueue, err := queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, 0, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	verifier, err := oidc.NewVerifier(oidc.NewJWKSManager(nil, oidc.DefaultJWKSTTL), oidc.VerifierConfig{
		JWKSURL: cfg.AuthJWKSURL,
		Secret:  cfg.AuthJWTSecret,
		Issuer:  cfg.AuthIssuer,
	})
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	campaignRepo := database.NewCampaignRepository(db)
	postRepo := database.NewPostRepository(db)
	postRepo.SetLogger(zapLogger)
	imageRepo := database.NewImageRepository(db)

	healthChecker := handlers.NewHealthChecker(db.HealthCheck).
		WithCheck("rabbitmq", jobQueue.HealthCheck)
	if redisClient != nil {
		healthChecker.WithCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	} else {
		healthChecker.WithCheck("redis", nil)
	}

	r := mux.NewRouter()
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(cfg.MaxUploadBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	handlers.NewOpenAPIHandler(openAPIPath).RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Auth(verifier, zapLogger))
	if redisClient != nil {
		rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit)
		if err != nil {
			return err
		}
		apiRouter.Use(rateLimitMW)
	}

	handlers.NewCampaignHandler(campaignRepo, postRepo).
		RegisterRoutes(apiRouter.PathPrefix("/campaigns").Subrouter())
	handlers.NewPostHandler(postRepo, imageRepo, jobQueue, progressStore, zapLogger, cfg.MaxUploadBytes).
		RegisterRoutes(apiRouter.PathPrefix("/posts").Subrouter())

	// CORS and request IDs wrap the router so they also cover preflight
	// requests that match no route
	handler := middleware.RequestID(middleware.CORS(cfg.FrontendURL)(r))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		gc := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqGCRetention, zapLogger).
			WithSweeper(postRepo, staleAnalysisAfter)
		if err := gc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	zapLogger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	zapLogger.Info("server_exited")
	return nil
}

func versionInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
