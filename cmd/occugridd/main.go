// Command occugridd implements the thermal occupancy service.
//
// The service ingests low-resolution thermal frames from grid sensors and
// turns each upload into an occupancy estimate:
//  1. Decodes the compact or expanded JSON payload
//  2. Estimates the room baseline temperature (median cell)
//  3. Segments warm, human-plausible clusters from the grid
//  4. Counts clusters within the configured size bounds as people
//  5. Appends the sample to a day-bucketed occupancy log
//  6. Publishes the result as the latest frame for the live view
//
// The service serves an HTTP API on port 8090 (configurable) providing:
//   - POST /api/thermal - Ingest a thermal frame upload
//   - GET /api/thermal - Latest expanded frame for the live view
//   - GET /api/occupancy/latest - Latest pipeline result
//   - GET /api/occupancy/history?day=YYYYMMDD - Day log in append order
//   - GET /api/occupancy/stats?day=YYYYMMDD - Day statistics
//   - GET / - Embedded live view page
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	occugridd \
//	  -listen=:8090 \
//	  -data-dir=/var/lib/occugrid \
//	  -latest-backend=memory \
//	  -min-human-temp=30 -max-human-temp=45 \
//	  -baseline-margin=0.5 \
//	  -min-cluster-size=3 -max-cluster-size=200
//
// Environment variables:
//
//	LISTEN           - HTTP listen address (default: :8090)
//	DATA_DIR         - Day log directory (default: data)
//	LATEST_BACKEND   - Latest-result backend: memory or redis (default: memory)
//	REDIS_ADDR       - Redis server address
//	REDIS_PASSWORD   - Redis password
//	REDIS_DB         - Redis database number
//	REDIS_TTL        - Redis latest-result TTL (default: 30m)
//	MIN_HUMAN_TEMP   - Lower human temperature bound (default: 30)
//	MAX_HUMAN_TEMP   - Upper human temperature bound (default: 45)
//	BASELINE_MARGIN  - Required margin above baseline (default: 0.5)
//	MIN_CLUSTER_SIZE - Minimum counted cluster size (default: 3)
//	MAX_CLUSTER_SIZE - Maximum counted cluster size (default: 200)
//	LOG_LEVEL        - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT       - Logging format: text, json (default: text)
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

	"github.com/occugrid/occugrid/cmd/occugridd/config"
	"github.com/occugrid/occugrid/cmd/occugridd/logger"
	"github.com/occugrid/occugrid/cmd/occugridd/metrics"
	"github.com/occugrid/occugrid/cmd/occugridd/router"
	"github.com/occugrid/occugrid/pkg/httpx"
	"github.com/occugrid/occugrid/pkg/occupancy"
	"github.com/occugrid/occugrid/pkg/storage"
	"github.com/occugrid/occugrid/pkg/thermal"
	occugridtls "github.com/occugrid/occugrid/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting occugridd",
		"version", version,
		"data_dir", cfg.DataDir,
		"latest_backend", cfg.LatestBackend,
	)

	store, err := storage.NewDayLogStore(cfg.DataDir)
	if err != nil {
		log.Error("failed to open day log store", "error", err)
		os.Exit(1)
	}

	latest := newLatestCache(cfg, log)
	if closer, ok := latest.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close latest cache", "error", err)
			}
		}()
	}

	segCfg := thermal.SegmentConfig{
		MinHumanTemp:   cfg.MinHumanTemp,
		MaxHumanTemp:   cfg.MaxHumanTemp,
		BaselineMargin: cfg.BaselineMargin,
	}
	filterCfg := occupancy.FilterConfig{
		MinClusterSize: cfg.MinClusterSize,
		MaxClusterSize: cfg.MaxClusterSize,
	}

	pipeline := NewPipeline(segCfg, filterCfg, store, latest, log, metrics.New())

	mux := router.SetupRoutes(pipeline, cfg.MaxBodyBytes, healthCheck(cfg.DataDir, latest), log)

	var handler http.Handler = mux
	handler = httpx.RecoveryMiddleware(log)(handler)
	handler = httpx.LoggingMiddleware(log)(handler)

	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			tlsConfig, err := occugridtls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
			if err != nil {
				serverErr <- err
				return
			}
			httpServer.SetTLSConfig(tlsConfig)
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// healthCheck reports whether the storage backends are usable: the day log
// directory must be accessible and the latest-result backend reachable.
func healthCheck(dataDir string, latest storage.LatestCache) func() error {
	return func() error {
		if _, err := os.Stat(dataDir); err != nil {
			return fmt.Errorf("data directory unavailable: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := latest.Ping(ctx); err != nil {
			return fmt.Errorf("latest cache unreachable: %w", err)
		}
		return nil
	}
}

// newLatestCache builds the latest-result backend selected by configuration.
func newLatestCache(cfg *config.Config, log *slog.Logger) storage.LatestCache {
	if cfg.LatestBackend == "redis" {
		cache, err := storage.NewRedisLatest(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			log.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("using redis latest-result cache", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return cache
	}

	log.Info("using in-memory latest-result cache")
	return storage.NewMemoryLatest()
}
