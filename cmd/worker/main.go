package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/curriculum"
	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/figures"
	"github.com/timmy/coursegen/internal/jobs"
	"github.com/timmy/coursegen/internal/kvstore"
	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/notify"
	"github.com/timmy/coursegen/internal/queue"
	"github.com/timmy/coursegen/internal/render"
	"github.com/timmy/coursegen/internal/repository"
	"github.com/timmy/coursegen/internal/service"
	"github.com/timmy/coursegen/internal/storage"
	"github.com/timmy/coursegen/internal/worker"
)

func main() {
	envCfg := logger.LoadFromEnv()
	if envCfg.ServiceName == "coursegen" {
		envCfg.ServiceName = "coursegen-worker"
	}
	appLogger := logger.NewFromEnv(envCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	once := flag.Bool("once", false, "Process at most one job and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := kvstore.New(ctx, &cfg.Store)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open job store")
	}

	objectStorage, err := storage.New(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if b, ok := objectStorage.(storage.BucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.AMQPURL != "" {
		n, err := notify.NewAMQPNotifier(ctx, &notify.AMQPConfig{
			URL:      cfg.Notify.AMQPURL,
			Exchange: cfg.Notify.Exchange,
			Queue:    cfg.Notify.Queue,
			Consume:  true,
		})
		if err != nil {
			appLogger.WithError(err).Warn("RabbitMQ unavailable, polling only")
		} else {
			notifier = n
		}
	}
	defer notifier.Close()

	llm := service.NewLLMService(&cfg.LLM)
	var images service.ImageGenerator
	if cfg.Image.Enabled() {
		images = service.NewImageService(&cfg.Image)
	}
	var works service.WorkSearcher
	if cfg.CrossRef.Enabled {
		works = service.NewCrossRefService(&cfg.CrossRef)
	}

	jobRepo := repository.NewJobRepository(store)
	curricula := repository.NewCurriculumRepository(store)
	q := queue.NewPollQueue(jobRepo, notifier, queue.Options{
		MaxRescans:  cfg.Worker.MaxRescans,
		DownloadURL: objectStorage.GetURL,
	})

	engine := curriculum.NewEngine(llm, curriculum.PolicyFromConfig(&cfg.Generation), cfg.Generation.MaxAttempts)
	resolver := figures.NewResolver(images, works, figures.Config{
		MaxImages:  cfg.Figures.MaxImages,
		MinFigures: cfg.Figures.MinFigures,
	})
	renderer := render.NewRenderer(render.Config{
		ChromePath:     cfg.Render.ChromePath,
		BrowserTimeout: cfg.Render.BrowserTimeout,
	})

	registry := worker.NewRegistry()
	registry.Register(domain.JobTypeCurriculum, jobs.NewGenerationHandler(engine, curricula, objectStorage, cfg.Storage.Bucket))
	registry.Register(domain.JobTypeChapter, jobs.NewExportHandler(llm, resolver, renderer, curricula, objectStorage, jobs.ExportConfig{
		Bucket:      cfg.Storage.Bucket,
		MaxAttempts: cfg.Generation.MaxAttempts,
	}))

	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID, _ = os.Hostname()
	}
	loop := worker.NewLoop(q, registry, notifier.Wakeups(), worker.Config{
		ID:           workerID,
		PollInterval: cfg.Worker.PollInterval,
		ErrorBackoff: cfg.Worker.ErrorBackoff,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, finishing current job before exit")
		cancel()
	}()

	appLogger.WithFields(logger.Fields{
		"store":   cfg.Store.Backend,
		"storage": cfg.Storage.Type,
		"model":   llm.GetModel(),
		"once":    *once,
	}).Info("Starting worker")

	if *once {
		processed, err := loop.RunOnce(ctx)
		if err != nil {
			appLogger.WithError(err).Fatal("Job processing failed")
		}
		appLogger.WithField("processed", processed).Info("Worker finished")
		return
	}

	if err := loop.Run(ctx); err != nil {
		appLogger.WithError(err).Fatal("Worker stopped with error")
	}
	appLogger.Info("Worker exited")
}
