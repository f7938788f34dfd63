package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/cache"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/config"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/dataset"
	httphandler "github.com/kjstillabower/bike-sharing-dashboard/internal/http"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/lifecycle"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/observability"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/render"
	"github.com/kjstillabower/bike-sharing-dashboard/internal/service"
)

func main() {
	lifecycle.MarkStarted(time.Now())

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	source, closeSource, err := openSource(cfg)
	if err != nil {
		logger.Fatal("dataset source", zap.Error(err))
	}
	store := dataset.NewStore(source, logger)

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	case "in_memory":
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	default:
		logger.Info("cache backend: none")
	}
	dashboardService := service.NewDashboardService(store, cacheSvc, cfg.CacheTTL, cfg.RequestTimeout)

	if cacheSvc != nil {
		warmer := cache.NewWarmer(dashboardService, logger)
		store.OnLoad(func(ctx context.Context, ds *dataset.Dataset) {
			go func() {
				warmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.DataReloadTimeout)
				defer cancel()
				if err := warmer.Warm(warmCtx, cache.DefaultRanges()); err != nil {
					logger.Warn("cache warming failed", zap.String("version", ds.Version), zap.Error(err))
				}
			}()
		})
	}

	// A missing or invalid file is not fatal: health reports "starting"
	// until a later reload succeeds.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), cfg.DataReloadTimeout)
	if err := store.Reload(loadCtx); err != nil {
		logger.Error("initial dataset load failed", zap.Error(err))
	}
	loadCancel()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if cfg.DataWatch {
		watcher, err := dataset.NewWatcher(cfg.DataCSVPath, store, logger)
		if err != nil {
			logger.Fatal("dataset watcher", zap.Error(err))
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dataset watcher stopped", zap.Error(err))
			}
		}()
		logger.Info("watching dataset file", zap.String("path", cfg.DataCSVPath))
	}

	var scheduler *dataset.Scheduler
	if cfg.DataReloadSchedule != "" {
		scheduler, err = dataset.NewScheduler(cfg.DataReloadSchedule, cfg.DataReloadTimeout, store, logger)
		if err != nil {
			logger.Fatal("reload schedule", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("scheduled dataset reloads", zap.String("schedule", cfg.DataReloadSchedule))
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	chartSize := render.Size{Width: cfg.ChartWidth, Height: cfg.ChartHeight}
	handler := httphandler.NewHandler(dashboardService, store, store, healthConfig, logger, limiter, chartSize)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		TestingMode:    cfg.TestingMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := closeSource(); err != nil {
		logger.Error("dataset source close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// openSource returns the configured dataset source and its close func.
func openSource(cfg *config.Config) (dataset.Source, func() error, error) {
	switch cfg.DataSource {
	case "sqlite":
		repo, err := dataset.OpenSQLite(cfg.DataSQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return dataset.RepositorySource{Repo: repo, Path: cfg.DataSQLitePath}, repo.Close, nil
	default:
		return dataset.CSVSource{Path: cfg.DataCSVPath}, func() error { return nil }, nil
	}
}
