package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

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
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !cfg.QueueEnabled() {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	// The worker reads collections from the same store as the API and
	// reloads them periodically; jobs pin the graph-type version the API
	// resolved at submit time.
	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	reg := registry.New(repo, store.Options{LockTimeout: cfg.StoreLockTimeout, Observer: metrics.StoreObserver{}})
	defer reg.Close()
	if err := reg.Open(ctx); err != nil {
		log.Fatal("failed to load collections", zap.Error(err))
	}

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go refreshLoop(refreshCtx, reg)

	configSvc := services.NewConfigService(reg, resolver.New(reg))
	renderSvc := services.NewRenderService(configSvc, render.NewGraphvizLayout(), render.NewSVGRenderer(), cache.NewRedisCache(rdb), nil, services.RenderOptions{
		Timeout: cfg.RenderTimeout,
		JobTTL:  cfg.RenderCacheTTL,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	mux := asynq.NewServeMux()
	handler := tasks.NewRenderTaskHandler(renderSvc)
	mux.HandleFunc(tasks.TypeRenderSVG, handler.HandleRender)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.L().Error("worker stopped with error", zap.Error(err))
	}

	// Allow in-flight tasks to finish gracefully
	srv.Shutdown()
}

const refreshInterval = 30 * time.Second

func refreshLoop(ctx context.Context, reg *registry.Registry) {
	log := logger.Named("refresh")
	t := time.NewTicker(refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := reg.Refresh(ctx); err != nil {
				log.Warn("collection refresh failed", zap.Error(err))
			}
		}
	}
}
