package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/recipelens/platform/pkg/common/config"
	"github.com/recipelens/platform/pkg/common/database"
	"github.com/recipelens/platform/pkg/common/kafka"
	"github.com/recipelens/platform/pkg/common/logger"
	"github.com/recipelens/platform/pkg/extraction"
	"github.com/recipelens/platform/pkg/observability/metrics"
	"github.com/recipelens/platform/pkg/recipe"
	"github.com/recipelens/platform/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetDB(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to database")
	}
	defer database.CloseDB()

	if err := recipe.NewRepository(db).AutoMigrate(); err != nil {
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
	if cfg.RedisEnabled {
		redisClient = database.GetRedis(cfg)
		defer database.CloseRedis()
	}

	flow, err := extraction.Build(cfg, db, redisClient, store)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build extraction workflow")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumers := cfg.WorkerConsumers
	if consumers < 1 {
		consumers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ExtractionTopic, cfg.KafkaGroupID)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer consumer.Close()
			if err := consumer.Consume(ctx, flow.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).WithField("consumer", id).Error("consumer stopped")
			}
		}(i)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.WorkerPort),
		Handler:     router,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic":     cfg.ExtractionTopic,
			"group":     cfg.KafkaGroupID,
			"consumers": consumers,
			"port":      cfg.WorkerPort,
		}).Info("Extraction Worker started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extraction Worker...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Extraction Worker stopped")
}
