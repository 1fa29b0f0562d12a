package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/recipelens/platform/pkg/api"
	"github.com/recipelens/platform/pkg/common/config"
	"github.com/recipelens/platform/pkg/common/database"
	"github.com/recipelens/platform/pkg/common/kafka"
	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/common/middleware"
	"github.com/recipelens/platform/pkg/extraction"
	"github.com/recipelens/platform/pkg/observability/metrics"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/storage"
	"github.com/recipelens/platform/pkg/workflow"
	"github.com/redis/go-redis/v9"
)

const recipeCachePrefix = "recipelens:recipe:"

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetDB(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to database")
	}
	defer database.CloseDB()

	repo := recipe.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate recipe tables")
	}

	store, err := storage.NewDiskStore(db, storage.Options{
		Dir:           cfg.StorageDir,
		PublicBaseURL: cfg.PublicBaseURL,
		InlineImages:  cfg.StorageInlineImages,
		TokenTTL:      cfg.UploadTokenTTL,
		MaxBytes:      cfg.MaxRequestBody,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to open image storage")
	}
	if err := store.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate storage tables")
	}

	var redisClient *redis.Client
	var cache recipe.Cache = recipe.NewMemoryCache(cfg.ViewCacheTTL, 0)
	if cfg.RedisEnabled {
		redisClient = database.GetRedis(cfg)
		defer database.CloseRedis()
		cache = recipe.NewRedisCache(redisClient, recipeCachePrefix, cfg.ViewCacheTTL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starter workflow.Starter
	var inline *workflow.InlineStarter
	switch cfg.WorkflowMode {
	case "inline":
		flow, err := extraction.Build(cfg, db, redisClient, store)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to build extraction workflow")
		}
		inline = workflow.NewInlineStarter(ctx, flow.Run)
		starter = inline
		resumeUnfinished(ctx, repo, inline)
	case "kafka":
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.ExtractionTopic)
		defer producer.Close()
		starter = workflow.NewKafkaStarter(producer, extraction.EventRequested, "recipe-api")
	default:
		logger.Log.WithField("mode", cfg.WorkflowMode).Fatal("unknown WORKFLOW_MODE")
	}

	svc := api.NewService(repo, recipe.NewCachedReader(repo, cache), store, starter)
	handler := api.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"database unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	handler.Register(router)
	router.Use(middleware.Logging, middleware.Recovery)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      middleware.CORS(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
			"mode": cfg.WorkflowMode,
		}).Info("Recipe API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purged, err := store.PurgeExpiredTokens(ctx)
				if err != nil {
					logger.Log.WithError(err).Warn("upload token cleanup failed")
					continue
				}
				logger.Log.WithField("purged", purged).Debug("upload tokens cleaned up")
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Recipe API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	// Interrupted inline instances keep their checkpoints and resume on the
	// next start.
	cancel()
	if inline != nil {
		inline.Wait()
	}

	logger.Log.Info("Recipe API stopped")
}

func resumeUnfinished(ctx context.Context, repo *recipe.Repository, starter *workflow.InlineStarter) {
	recs, err := repo.Unfinished(ctx, 0)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to list unfinished recipes")
		return
	}
	for _, rec := range recs {
		_ = starter.Start(ctx, rec.ID)
	}
	if len(recs) > 0 {
		logger.Log.WithField("count", len(recs)).Info("Resumed unfinished extractions")
	}
}
