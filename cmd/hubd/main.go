/*
main.go - Hub daemon entry point

PURPOSE:
  Initializes and starts the MyPts supply hub daemon. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load TOML config
  2. Initialize SQLite store
  3. Wire metrics, valuation series and hub service
  4. Eagerly initialize the ledger (bootstrap on first run)
  5. Start the consistency monitor
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the TOML config file (default: hub.toml)
  -db      Override database_path from the config
  -addr    Override listen_addr from the config

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the consistency monitor
  4. Close the database connection

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/warp/points-hub/api"
	"github.com/warp/points-hub/config"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/store/sqlite"
	"github.com/warp/points-hub/valuation"
)

func main() {
	configPath := flag.String("config", "hub.toml", "path to TOML config file")
	dbPath := flag.String("db", "", "override database path")
	addr := flag.String("addr", "", "override listen address")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "hubd").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if cfg.AdminToken == "" {
		log.Warn().Msg("admin_token is empty; the /hub routes are unauthenticated")
	}

	// Storage
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to open database")
	}
	defer store.Close()

	// Metrics
	var registry *prometheus.Registry
	var metrics *hub.Metrics
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = hub.NewMetrics(registry)
	}

	// Valuation series + hub service
	valuationLog := log.With().Str("component", "valuation").Logger()
	series := valuation.NewSeries(store, cfg.BaseCurrency, cfg.BaseSymbol, valuation.SeriesOptions{
		Logger: &valuationLog,
	})
	hubLog := log.With().Str("component", "hub").Logger()
	service := hub.NewService(store, store, hub.ServiceOptions{
		Valuation: series,
		Metrics:   metrics,
		Logger:    &hubLog,
	})

	// Eager initialization: fail fast on an unreachable or corrupt store
	// instead of surfacing it on the first request.
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.Initialize(startCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to initialize ledger")
	}
	cancel()

	// Background consistency monitor (verification only)
	monitor := hub.NewMonitor(service, cfg.VerifyEvery(), log.With().Str("component", "monitor").Logger())
	monitor.Start()
	defer monitor.Stop()

	// HTTP server
	handler := api.NewHandler(service, series, log.With().Str("component", "api").Logger())
	routerOpts := api.RouterOptions{
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if registry != nil {
		routerOpts.Metrics = registry
	}
	router := api.NewRouter(handler, routerOpts)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("hub daemon listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("hub daemon stopped")
}
