package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/api"
	"github.com/graphrapids/graphapi/internal/api/handlers"
	"github.com/graphrapids/graphapi/internal/cache"
	"github.com/graphrapids/graphapi/internal/queue/tasks"
	"github.com/graphrapids/graphapi/internal/registry"
	"github.com/graphrapids/graphapi/internal/render"
	"github.com/graphrapids/graphapi/internal/repository"
	"github.com/graphrapids/graphapi/internal/resolver"
	"github.com/graphrapids/graphapi/internal/services"
	"github.com/graphrapids/graphapi/internal/store"
	"github.com/graphrapids/graphapi/pkg/config"
	"github.com/graphrapids/graphapi/pkg/logger"
	"github.com/graphrapids/graphapi/pkg/metrics"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting graphapi",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.StoreDriver),
	)

	ctx := context.Background()
	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}

	reg := registry.New(repo, store.Options{LockTimeout: cfg.StoreLockTimeout, Observer: metrics.StoreObserver{}})
	defer reg.Close()
	if err := reg.Open(ctx); err != nil {
		log.Fatal("Failed to load collections", zap.Error(err))
	}

	seeder := services.NewSeeder(reg)
	if cfg.SeedDefaults {
		if _, err := seeder.EnsureDefaults(ctx); err != nil {
			log.Fatal("Failed to seed defaults", zap.Error(err))
		}
	}
	if cfg.LegacyThemeCSS != "" {
		css, err := os.ReadFile(cfg.LegacyThemeCSS)
		if err != nil {
			log.Fatal("Failed to read legacy theme", zap.String("path", cfg.LegacyThemeCSS), zap.Error(err))
		}
		if _, err := seeder.ImportLegacyTheme(ctx, services.DefaultID, string(css)); err != nil {
			log.Fatal("Failed to import legacy theme", zap.Error(err))
		}
	}

	// Async rendering needs redis for both the queue and the job records.
	var (
		jobs  cache.Cache
		queue services.JobQueue
	)
	if cfg.QueueEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		jobs = cache.NewRedisCache(rdb)
		defer jobs.Close()

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: 0})
		defer client.Close()
		queue = tasks.NewQueue(client, cfg.RenderTimeout, cfg.RenderCacheTTL)
		log.Info("async rendering enabled", zap.String("redis", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, async rendering disabled")
	}

	configSvc := services.NewConfigService(reg, resolver.New(reg))
	renderSvc := services.NewRenderService(configSvc, render.NewGraphvizLayout(), render.NewSVGRenderer(), jobs, queue, services.RenderOptions{
		Timeout: cfg.RenderTimeout,
		JobTTL:  cfg.RenderCacheTTL,
	})

	// Initialize handlers
	v := handlers.NewValidator()
	router := api.NewRouter(api.Dependencies{
		Readiness:          reg,
		CollectionsHandler: handlers.NewCollectionsHandler(configSvc, v),
		DerivedHandler:     handlers.NewDerivedHandler(configSvc, v),
		RenderHandler:      handlers.NewRenderHandler(renderSvc, v),
		CORSOrigins:        cfg.CORSOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
