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
	"github.com/formatforge/formatforge/internal/repository"
	"github.com/formatforge/formatforge/internal/s3storage"
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

	if cfg.RedisAddr == "" {
		log.Error("worker requires FORMATFORGE_REDIS_ADDR")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		log.Error("worker requires FORMATFORGE_DATABASE_URL")
		os.Exit(1)
	}

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
	store := repository.NewJobRepository(pool)

	objects, err := s3storage.New(cfg)
	if err != nil {
		log.Error("connect object storage", "error", err)
		os.Exit(1)
	}

	engines := worker.Engines{
		Image:     engine.NewImageEngine(cfg.VipsPath),
		Media:     engine.NewMediaEngine(cfg.FFmpegPath, cfg.FFprobePath),
		Document:  engine.NewDocumentEngine(cfg.SofficePath, cfg.EbookConvertPath),
		Archive:   engine.NewArchiveEngine(cfg.SevenZipPath),
		Assembler: engine.NewPDFAssembler(),
	}
	for name, eng := range map[string]engine.Engine{
		"image":    engines.Image,
		"media":    engines.Media,
		"document": engines.Document,
		"archive":  engines.Archive,
	} {
		if err := eng.Healthy(ctx); err != nil {
			log.Warn("engine unavailable at startup", "engine", name, "error", err)
		}
	}

	dispatcher := worker.NewDispatcher(store, objects, engines, cfg.JobTimeout, cfg.TempDir, log)

	janitor := worker.NewJanitor(store, objects, cfg.RetentionWindow, 0, log)
	go janitor.Run(ctx)

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	log.Info("worker listening", "redis", cfg.RedisAddr, "concurrency", cfg.WorkerConcurrency)
	if err := srv.Run(dispatcher.Handler()); err != nil {
		log.Error("worker server", "error", err)
		os.Exit(1)
	}
}
