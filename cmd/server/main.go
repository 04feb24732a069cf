package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lumen.app/companion/common/id"
	"lumen.app/companion/common/llm"
	"lumen.app/companion/common/logger"
	"lumen.app/companion/common/otel"
	"lumen.app/companion/core/config"
	"lumen.app/companion/core/db"
	"lumen.app/companion/internal/http/middleware"
	httprouter "lumen.app/companion/internal/http/router"
	"lumen.app/companion/internal/queue"
	"lumen.app/companion/internal/service"
	"lumen.app/companion/internal/store"
)

const sessionSweepInterval = time.Hour

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "companion starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema", "error", err)
		os.Exit(1)
	}
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

	memoryProducer := queue.NewRedisProducer(redisClient, cfg.Memory.Stream, slog.Default())
	defer memoryProducer.Close()

	registry, err := llm.NewRegistryFromConfigs(ctx, cfg.Catalog.BackendConfigs())
	if err != nil {
		slog.ErrorContext(ctx, "failed to build backend registry", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "backends ready", "backends", registry.IDs())

	pipelines, err := service.NewPipelines(cfg.Catalog, registry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build pipelines", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Querier(), redisClient)
	go sweepSessions(ctx, stores.Sessions())

	services := service.NewServices(service.Deps{
		Stores:    stores,
		TxRunner:  service.NewTxRunner(database),
		Identity:  service.NewWorkOSIdentityProvider(cfg.WorkOS),
		Pipelines: pipelines,
		Backends:  registry.IDs(),
		Producer:  memoryProducer,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Discussion mode runs fan-out, synthesis and humanization in one request.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		DashboardURL: cfg.DashboardURL,
		IsProduction: cfg.IsProduction(),
		RateLimit:    cfg.RateLimit,
	})

	return router
}

func sweepSessions(ctx context.Context, sessions store.SessionStore) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		n, err := sessions.DeleteExpired(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to delete expired sessions", "error", err)
			continue
		}
		if n > 0 {
			slog.InfoContext(ctx, "expired sessions deleted", "count", n)
		}
	}
}

const banner = `
  ___ ___  _ __ ___  _ __   __ _ _ __ (_) ___  _ __
 / __/ _ \| '_ ' _ \| '_ \ / _' | '_ \| |/ _ \| '_ \
| (_| (_) | | | | | | |_) | (_| | | | | | (_) | | | |
 \___\___/|_| |_| |_| .__/ \__,_|_| |_|_|\___/|_| |_|
                    |_|                     server
`
