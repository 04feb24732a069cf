package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"lumen.app/companion/common/id"
	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
	"lumen.app/companion/common/otel"
	"lumen.app/companion/common/upload"
	"lumen.app/companion/core/config"
	"lumen.app/companion/core/db"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/service"
	"lumen.app/companion/internal/store"
	"lumen.app/companion/internal/worker"
)

const imageFetchTimeout = time.Minute

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "memory worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Memory.Group,
		"consumer_name", cfg.Memory.Consumer)

	// Different node ID than the server.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Memory.Stream)

	journal, err := llm.NewClient(llm.ClientConfig{
		APIKey:  cfg.JournalLLM.APIKey,
		BaseURL: cfg.JournalLLM.BaseURL,
		Model:   cfg.JournalLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create journal client", "error", err)
		os.Exit(1)
	}

	var images llm.ImageGenerator
	if cfg.Image.Enabled() {
		images, err = llm.NewImageGenerator(llm.ImageConfig{
			APIKey:  cfg.Image.APIKey,
			BaseURL: cfg.Image.BaseURL,
			Model:   cfg.Image.Model,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create image generator", "error", err)
			os.Exit(1)
		}
	} else {
		slog.InfoContext(ctx, "image generation disabled, memories get no panel images")
	}

	var uploader upload.Uploader
	if cfg.Cloudinary.Enabled() {
		uploader, err = upload.NewCloudinary(cfg.Cloudinary.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to configure cloudinary", "error", err)
			os.Exit(1)
		}
	}

	registry, err := llm.NewRegistryFromConfigs(ctx, cfg.Catalog.BackendConfigs())
	if err != nil {
		slog.ErrorContext(ctx, "failed to build backend registry", "error", err)
		os.Exit(1)
	}
	pipelines, err := service.NewPipelines(cfg.Catalog, registry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build pipelines", "error", err)
		os.Exit(1)
	}

	services := service.NewServices(service.Deps{
		Stores:    store.NewStores(database.Querier(), redisClient),
		Pipelines: pipelines,
		Backends:  registry.IDs(),
		Journal:   journal,
		Images:    images,
		Uploader:  uploader,
		Fetcher:   upload.NewHTTPFetcher(imageFetchTimeout),
		Memory: service.MemoryConfig{
			Folder:       cfg.Cloudinary.Folder,
			ImageSize:    cfg.Image.Size,
			ImageQuality: cfg.Image.Quality,
			MaxTokens:    cfg.JournalLLM.MaxTokens,
		},
	})

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Memory.Stream,
		Group:        cfg.Memory.Group,
		Consumer:     cfg.Memory.Consumer,
		DLQStream:    cfg.Memory.DLQStream,
		BatchSize:    1, // one day at a time, generation is slow
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Memory.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, services.Memories(), worker.Config{
		MaxAttempts: cfg.Memory.MaxAttempts,
		Retryable:   service.IsRetryable,
	})

	reclaimer := worker.NewReclaimer(consumer, w.Handle, worker.ReclaimerConfig{
		Claimant:  cfg.Memory.Consumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	})

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Reclaimer first; the worker may be mid-generation.
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
  ___ ___  _ __ ___  _ __   __ _ _ __ (_) ___  _ __
 / __/ _ \| '_ ' _ \| '_ \ / _' | '_ \| |/ _ \| '_ \
| (_| (_) | | | | | | |_) | (_| | | | | | (_) | | | |
 \___\___/|_| |_| |_| .__/ \__,_|_| |_|_|\___/|_| |_|
                    |_|                     worker
`
