package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/posdesk/internal/cache"
	"github.com/angelmondragon/posdesk/internal/cron"
	"github.com/angelmondragon/posdesk/internal/offline"
	"github.com/angelmondragon/posdesk/internal/replay"
	"github.com/angelmondragon/posdesk/internal/syncqueue"
	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/connectivity"
	"github.com/angelmondragon/posdesk/pkg/localstore"
	"github.com/angelmondragon/posdesk/pkg/logger"
	"github.com/angelmondragon/posdesk/pkg/metrics"
	"github.com/angelmondragon/posdesk/pkg/redis"
	"github.com/angelmondragon/posdesk/pkg/remote"
)

const serviceName = "sync-worker"

// sync-worker drains the queue and runs maintenance jobs for agents started
// with POSDESK_SYNC_EMBEDDED_REPLAY=false. It serves only /metrics.
func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	store := localstore.New(cfg.DB, logg)
	if err := store.Init(ctx); err != nil {
		logg.Error(ctx, "failed to open local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(ctx, "redis not configured; replay lock is process-local and must not run beside an embedded replayer")
	}

	registry := prometheus.NewRegistry()
	cacheMetrics := metrics.NewCacheMetrics(registry)
	syncMetrics := metrics.NewSyncMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	client, err := remote.New(cfg.Remote, logg)
	if err != nil {
		logg.Error(ctx, "failed to create remote client", err)
		os.Exit(1)
	}
	monitor := connectivity.New(client, cfg.Connectivity, logg)
	caches := cache.New(cache.Params{
		Store:           store,
		Metrics:         cacheMetrics,
		Logger:          logg,
		FreshnessMaxAge: cfg.Cache.FreshnessMaxAge,
	})
	queue := syncqueue.New(store, logg)
	hooks, err := offline.New(offline.Params{
		Store:    store,
		Caches:   caches,
		Queue:    queue,
		Upstream: client,
		Signal:   monitor,
		Metrics:  cacheMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create offline hooks", err)
		os.Exit(1)
	}

	replayLock, err := cron.NewLockFor(redisClient, lockName(cfg.App.Env, "replay"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create replay lock", err)
		os.Exit(1)
	}
	wake, cancelWake := monitor.Subscribe()
	defer cancelWake()
	replayer, err := replay.NewService(replay.ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Queue:      queue,
		Upstream:   client,
		Signal:     monitor,
		Reconciler: replay.NewCacheReconciler(store, caches),
		Lock:       replayLock,
		Metrics:    syncMetrics,
		Wake:       wake,
	})
	if err != nil {
		logg.Error(ctx, "failed to create replay service", err)
		os.Exit(1)
	}

	cronLock, err := cron.NewLockFor(redisClient, lockName(cfg.App.Env, "cron"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	jobs, err := cron.NewMaintenanceRegistry(cron.MaintenanceParams{
		Logger:              logg,
		Queue:               queue,
		DeadLetterRetention: cfg.Sync.DeadLetterRetention,
		Refreshers:          []cron.Refresher{hooks.Languages, hooks.Currencies, hooks.Countries},
	})
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		os.Exit(1)
	}
	cronWake, cancelCronWake := monitor.Subscribe()
	defer cancelCronWake()
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     cronLock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
		Wake:     cronWake,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return monitor.Run(ctx) })
	group.Go(func() error { return replayer.Run(ctx) })
	group.Go(func() error { return cronService.Run(ctx) })
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logg.Info(ctx, "starting sync worker")
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}

func lockName(env, name string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("%s:%s", env, name)
}
