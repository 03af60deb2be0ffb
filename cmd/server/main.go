package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/internal/ai"
	"github.com/newtube/backend/internal/auth"
	"github.com/newtube/backend/internal/categories"
	"github.com/newtube/backend/internal/encoding"
	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/internal/videos"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

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
	verifier := encoding.NewVerifier(cfg.Encoding.WebhookSecret)
	aiClient := ai.NewClient(cfg.OpenAI, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	categoryRepo := categories.NewRepository(pool)
	categoryHandler := categories.NewHandler(categoryRepo, logger)

	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo, encodingClient, files, logger)
	reconciler := videos.NewReconciler(videoRepo, encodingClient, files, logger)
	webhookHandler := videos.NewWebhookHandler(verifier, reconciler, logger)

	stepLog := workflow.NewRedisStepLog(rdb, time.Duration(cfg.Workflow.StepTTLHours)*time.Hour)
	policy := workflow.Policy{
		MaxAttempts: cfg.Workflow.MaxAttempts,
		Backoff:     time.Duration(cfg.Workflow.BackoffSeconds) * time.Second,
	}
	enricher := workflow.NewEnricher(videoRepo, aiClient, files, encodingClient, stepLog, policy, logger)
	jobs := queue.NewQueue(rdb, logger)
	workflowHandler := workflow.NewHandler(enricher, jobs, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider callbacks authenticate via signature, not JWT.
	router.POST("/webhooks/video-events", webhookHandler.HandleEvent)

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/categories", categoryHandler.List)
		api.POST("/categories", middleware.RequireRole("admin"), categoryHandler.Create)

		api.POST("/videos", videoHandler.Create)
		api.GET("/videos", videoHandler.List)
		api.GET("/videos/:id", videoHandler.GetByID)
		api.PATCH("/videos/:id", videoHandler.Update)
		api.DELETE("/videos/:id", videoHandler.Delete)

		api.POST("/videos/:id/workflows/title", workflowHandler.Title)
		api.POST("/videos/:id/workflows/description", workflowHandler.Description)
		api.POST("/videos/:id/workflows/thumbnail", workflowHandler.Thumbnail)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
