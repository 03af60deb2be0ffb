package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/internal/ai"
	"github.com/newtube/backend/internal/encoding"
	"github.com/newtube/backend/internal/videos"
	"github.com/newtube/backend/internal/worker"
	"github.com/newtube/backend/internal/workflow"
	"github.com/newtube/backend/pkg/database"
	"github.com/newtube/backend/pkg/queue"
	"github.com/newtube/backend/pkg/redis"
	"github.com/newtube/backend/pkg/storage"
)

func main() {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zapCfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	files, err := storage.NewS3(ctx, storage.S3Config{
		Region:           cfg.AWS.Region,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		ThumbnailsBucket: cfg.AWS.ThumbnailsBucket,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create S3 client", zap.Error(err))
	}

	encodingClient := encoding.NewClient(cfg.Encoding, logger)
	aiClient := ai.NewClient(cfg.OpenAI, logger)
	videoRepo := videos.NewRepository(pool)

	stepLog := workflow.NewRedisStepLog(rdb, time.Duration(cfg.Workflow.StepTTLHours)*time.Hour)
	policy := workflow.Policy{
		MaxAttempts: cfg.Workflow.MaxAttempts,
		Backoff:     time.Duration(cfg.Workflow.BackoffSeconds) * time.Second,
	}
	enricher := workflow.NewEnricher(videoRepo, aiClient, files, encodingClient, stepLog, policy, logger)
	jobs := queue.NewQueue(rdb, logger)

	processor := worker.NewEnrichmentProcessor(enricher, jobs, logger)
	logger.Info("enrichment worker starting")
	processor.Run(ctx)
	logger.Info("worker stopped")
}
