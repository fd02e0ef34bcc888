package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/formatforge/formatforge/internal/config"
	"github.com/formatforge/formatforge/internal/database"
	"github.com/formatforge/formatforge/internal/engine"
	"github.com/formatforge/formatforge/internal/logging"
	"github.com/formatforge/formatforge/internal/model"
	"github.com/formatforge/formatforge/internal/processing"
	"github.com/formatforge/formatforge/internal/queue"
	"github.com/formatforge/formatforge/internal/repository"
	"github.com/formatforge/formatforge/internal/s3storage"
	"github.com/formatforge/formatforge/internal/server"
	"github.com/formatforge/formatforge/internal/signing"
	"github.com/formatforge/formatforge/internal/storage"
	"github.com/formatforge/formatforge/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New("error").Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	var store repository.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		store = repository.NewJobRepository(pool)
	} else {
		log.Warn("no database configured, using in-memory job store")
		store = storage.NewMemoryStore()
	}

	objects, err := s3storage.New(cfg)
	if err != nil {
		log.Error("connect object storage", "error", err)
		os.Exit(1)
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		log.Error("ensure buckets", "error", err)
		os.Exit(1)
	}

	var dispatcher server.Dispatcher
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		dispatcher = queue.NewClient(client, cfg.JobTimeout)
	} else {
		// Single-process mode: run conversions on an in-process pool and
		// sweep expired jobs from here since there is no worker binary.
		log.Warn("no redis configured, processing jobs in-process")
		d := worker.NewDispatcher(store, objects, buildEngines(cfg), cfg.JobTimeout, cfg.TempDir, log)
		pool := processing.NewPool(d.ProcessJob, func(ctx context.Context, jobID string) {
			_ = store.MarkFailed(ctx, jobID, model.JobError{
				Code:    model.ErrCodeWorker,
				Message: "processing queue is full",
			})
		}, cfg.WorkerConcurrency, log)
		pool.Start(ctx)
		dispatcher = pool

		janitor := worker.NewJanitor(store, objects, cfg.RetentionWindow, 0, log)
		go janitor.Run(ctx)
	}

	signer := signing.NewSigner(cfg.SigningSecret)
	api := server.New(cfg, store, objects, dispatcher, signer, log)
	if err := api.Run(ctx); err != nil {
		log.Error("api server", "error", err)
		os.Exit(1)
	}
}

func buildEngines(cfg *config.Config) worker.Engines {
	return worker.Engines{
		Image:     engine.NewImageEngine(cfg.VipsPath),
		Media:     engine.NewMediaEngine(cfg.FFmpegPath, cfg.FFprobePath),
		Document:  engine.NewDocumentEngine(cfg.SofficePath, cfg.EbookConvertPath),
		Archive:   engine.NewArchiveEngine(cfg.SevenZipPath),
		Assembler: engine.NewPDFAssembler(),
	}
}
