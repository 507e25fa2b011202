package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/comment-pulse/internal/analysis"
	"github.com/benvon/comment-pulse/internal/config"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/logger"
	"github.com/benvon/comment-pulse/internal/progress"
	"github.com/benvon/comment-pulse/internal/queue"
	"github.com/benvon/comment-pulse/internal/services/ai"
	"github.com/benvon/comment-pulse/internal/telemetry"
	"github.com/benvon/comment-pulse/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "comment-pulse-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	provider := flag.String("provider", "openai", "Model provider name")
	flag.Parse()

	if err := config.LoadEnvFile(config.EnvFilePath()); err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateAI(); err != nil {
		log.Fatalf("Invalid AI configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag
	zapLogger, err := logger.New(logger.Format(cfg.LogFormat), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if err := run(cfg, *provider, debugMode, zapLogger); err != nil {
		zapLogger.Error("worker_failed", zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, providerName string, debugMode bool, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", providerName),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEnabled && cfg.OTELEndpoint != "", serviceName, cfg.OTELEndpoint, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
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

	var progressStore progress.Store
	if client, err := progress.Connect(ctx, cfg.RedisURL); err != nil {
		zapLogger.Warn("redis_unavailable_progress_disabled", zap.Error(err))
	} else {
		progressStore = progress.NewRedisStore(client, progress.DefaultTTL)
		defer func() { _ = client.Close() }()
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

	generator, err := ai.DefaultRegistry().GetProvider(providerName, ai.ProviderConfig{
		APIKey:    cfg.OpenAIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		Timeout:   cfg.AITimeout,
		Logger:    zapLogger,
		DebugMode: debugMode,
	})
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	postRepo := database.NewPostRepository(db)
	postRepo.SetLogger(zapLogger)
	pipeline := analysis.NewFromGenerator(generator, zapLogger, analysis.Options{
		BatchSize:       cfg.BatchSize,
		MaxCommentChars: cfg.MaxCommentChars,
	})
	analyzer := workers.NewPostAnalyzer(
		postRepo,
		database.NewImageRepository(db),
		pipeline,
		progressStore,
		jobQueue,
		zapLogger,
	)

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}
	zapLogger.Info("worker_started")

	go func() {
		for err := range errs {
			zapLogger.Error("queue_error", zap.Error(err))
		}
	}()

	// One job per prefetched message at most
	var g errgroup.Group
	g.SetLimit(max(cfg.RabbitMQPrefetch, 1))
	for msg := range msgs {
		g.Go(func() error {
			if err := analyzer.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				zapLogger.Error("job_processing_failed",
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		return errors.New("message channel closed before shutdown")
	}
	zapLogger.Info("worker_stopped")
	return nil
}
