package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/coursegen/internal/api"
	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/kvstore"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/notify"
	"github.com/timmy/coursegen/internal/queue"
	"github.com/timmy/coursegen/internal/repository"
	"github.com/timmy/coursegen/internal/storage"
)

func main() {
	envCfg := logger.LoadFromEnv()
	if envCfg.ServiceName == "coursegen" {
		envCfg.ServiceName = "coursegen-api"
	}
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH is used by production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := kvstore.New(ctx, &cfg.Store)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open job store")
	}

	// Builds public download URLs and streams outputs for private buckets.
	objectStorage, err := storage.New(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.AMQPURL != "" {
		n, err := notify.NewAMQPNotifier(ctx, &notify.AMQPConfig{
			URL:      cfg.Notify.AMQPURL,
			Exchange: cfg.Notify.Exchange,
		})
		if err != nil {
			appLogger.WithError(err).Warn("RabbitMQ unavailable, workers will poll")
		} else {
			notifier = n
		}
	}
	defer notifier.Close()

	q := queue.NewPollQueue(repository.NewJobRepository(store), notifier, queue.Options{
		DownloadURL: objectStorage.GetURL,
	})
	router := api.SetupRouter(q, store, objectStorage, &cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":  cfg.Server.Port,
			"mode":  cfg.Server.Mode,
			"store": cfg.Store.Backend,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}
	if err := store.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to close job store")
	}
	appLogger.Info("Server exited")
}
