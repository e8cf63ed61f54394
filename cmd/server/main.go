// QuantDesk - portfolio risk and return analytics API
// Entry point for the web server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findosh/quantdesk/internal/cache"
	"github.com/findosh/quantdesk/internal/config"
	"github.com/findosh/quantdesk/internal/handlers"
	"github.com/findosh/quantdesk/internal/logging"
	"github.com/findosh/quantdesk/internal/services/analytics"
	"github.com/findosh/quantdesk/internal/services/auth"
	"github.com/findosh/quantdesk/internal/services/marketdata"
	"github.com/findosh/quantdesk/internal/storage"
	"github.com/rs/zerolog"
)

// purgeInterval is how often the SQLite cache drops expired rows
const purgeInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "quantdesk.toml", "path to a TOML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize cache store
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("failed to open cache store")
	}
	defer closeStore()

	// Initialize services
	gateway := marketdata.NewGateway(newProvider(cfg), store, logger, cfg.Market.GetTimeout())
	analyticsService := analytics.NewService(gateway, analytics.NewEngine(), analytics.Defaults{
		BaseCurrency:    cfg.Analytics.BaseCurrency,
		Benchmark:       cfg.Analytics.Benchmark,
		RiskFreeRate:    cfg.Analytics.RiskFreeRate,
		ConfidenceLevel: cfg.Analytics.ConfidenceLevel,
		Range:           cfg.Analytics.Range,
		Interval:        cfg.Analytics.Interval,
	}, logger)
	authService := auth.NewService(cfg.Auth)

	h := handlers.New(cfg, gateway, analyticsService, authService)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment).
			Str("cache", cfg.Cache.Backend).
			Str("provider", cfg.Market.Provider).
			Bool("auth", authService.Enabled()).
			Msg("QuantDesk server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore builds the configured cache store and its cleanup function
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case config.CacheSQLite:
		db, err := storage.New(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, err
		}
		repo := storage.NewCacheRepository(db)
		go purgeLoop(ctx, repo, logger)
		return repo, func() { db.Close() }, nil

	default:
		store := cache.NewMemoryStore(cache.WithMaxEntries(cfg.Cache.MaxEntries))
		return store, func() { store.Close() }, nil
	}
}

func newProvider(cfg *config.Config) marketdata.Provider {
	if cfg.Market.Provider == config.ProviderYahoo {
		return marketdata.NewYahooProvider(marketdata.YahooConfig{
			BaseURL:   cfg.Market.BaseURL,
			UserAgent: cfg.Market.UserAgent,
			Timeout:   cfg.Market.GetTimeout(),
			RateLimit: cfg.Market.RateLimit,
		})
	}
	return marketdata.NewMockProvider()
}

func purgeLoop(ctx context.Context, repo *storage.CacheRepository, logger zerolog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.Purge(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("cache purge failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("removed", n).Msg("purged expired cache entries")
			}
		}
	}
}
