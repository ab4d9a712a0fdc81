package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/auravest/risk-engine/internal/config"
	"github.com/auravest/risk-engine/internal/database"
	"github.com/auravest/risk-engine/internal/marketdata"
	"github.com/auravest/risk-engine/internal/modules/forecast"
	"github.com/auravest/risk-engine/internal/modules/optimization"
	"github.com/auravest/risk-engine/internal/modules/options"
	"github.com/auravest/risk-engine/internal/modules/risk"
	"github.com/auravest/risk-engine/internal/modules/volatility"
	"github.com/auravest/risk-engine/internal/scheduler"
	"github.com/auravest/risk-engine/internal/server"
	"github.com/auravest/risk-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting risk engine")

	// Initialize quote cache database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Market data layer
	client := marketdata.NewClient(cfg.MarketDataURL, log)
	cache := marketdata.NewCache(db, cfg.QuoteCacheTTL, log)
	market := marketdata.NewService(client, cache, cfg.FetchConcurrency, log)

	// Analysis components
	pricing := options.NewPricingModel(log)
	analyzer := volatility.NewAnalyzer(pricing, cfg.RiskFreeRate, log)
	forecaster := forecast.NewForecaster(pricing, analyzer, cfg.RiskFreeRate, log)
	optimizer := optimization.NewOptimizer(cfg.RiskFreeRate, log)
	riskModel := risk.NewModel(cfg.RiskFreeRate, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, market, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Config:  cfg,
		DevMode: cfg.DevMode,
		Modules: []server.Module{
			marketdata.NewHandler(market, log),
			options.NewHandler(pricing, cfg.RiskFreeRate, log),
			volatility.NewHandler(analyzer, market, log),
			forecast.NewHandler(forecaster, market, log),
			optimization.NewHandler(optimizer, market, log),
			risk.NewHandler(riskModel, market, log),
		},
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, market *marketdata.Service, log zerolog.Logger) error {
	// Expire stale quote cache entries every 15 minutes
	return sched.AddJob("0 */15 * * * *", scheduler.NewCachePruneJob(market, log))
}
