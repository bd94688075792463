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

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/weathertools/openmeteo-mcp/internal/cache"
	"github.com/weathertools/openmeteo-mcp/internal/client"
	"github.com/weathertools/openmeteo-mcp/internal/config"
	"github.com/weathertools/openmeteo-mcp/internal/mcpserver"
	"github.com/weathertools/openmeteo-mcp/internal/observability"
	"github.com/weathertools/openmeteo-mcp/internal/service"
)

func main() {
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

	openMeteo := client.NewOpenMeteoClient(
		cfg.GeocodingURL,
		cfg.WeatherURL,
		cfg.UpstreamTimeout,
		cfg.UpstreamRPS,
		cfg.UpstreamBurst,
	)

	var store cache.Store
	var memcacheCloser *cache.MemcachedStore
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.CacheWindow, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		store = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		store = cache.NewInMemoryStore(cfg.CacheWindow, cfg.CacheMaxEntries)
		logger.Info("cache backend: in_memory",
			zap.Duration("window", cfg.CacheWindow),
			zap.Int("maxEntries", cfg.CacheMaxEntries))
	}

	weatherService := service.NewWeatherService(openMeteo, openMeteo, store, logger, cfg.MaxCityLength)

	if len(cfg.WarmCities) > 0 {
		warmer := service.NewCacheWarmer(weatherService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, cfg.WarmCities); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		router := mux.NewRouter()
		router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: router}
		go func() {
			logger.Info("metrics listener started", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(weatherService, logger, cfg.ServerName, cfg.ServerVersion)
	logger.Info("server started",
		zap.String("name", cfg.ServerName),
		zap.String("version", cfg.ServerVersion))

	runErr := srv.Run(ctx, &mcp.StdioTransport{})

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if memcacheCloser != nil {
		_ = memcacheCloser.Close()
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Fatal("server", zap.Error(runErr))
	}
	logger.Info("server stopped")
}
