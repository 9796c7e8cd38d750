package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/basketscout/backend/config"
	httpDelivery "github.com/basketscout/backend/internal/delivery/http"
	"github.com/basketscout/backend/internal/domain"
	"github.com/basketscout/backend/internal/infrastructure/cache"
	"github.com/basketscout/backend/internal/infrastructure/geocoding"
	"github.com/basketscout/backend/internal/infrastructure/scraper"
	"github.com/basketscout/backend/internal/usecase"
	"github.com/basketscout/backend/pkg/logger"
	"github.com/basketscout/backend/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}

	if err := run(cfg); err != nil {
		logger.Get().Error(context.Background(), "server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg := logger.Named("main")
	lg.Info(ctx, "starting BasketScout backend",
		logger.String("version", "1.0.0"),
		logger.String("environment", cfg.Server.Environment),
		logger.String("port", cfg.Server.Port),
		logger.String("cacheType", cfg.Cache.Type))

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(metrics.WithRegistry(registry))

	priceCache, closeCache, err := openPriceCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache.Close(); err != nil {
			lg.Warn(ctx, "closing price cache", logger.Error(err))
		}
	}()

	geocoder := geocoding.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.RequestsPerSecond)
	if cfg.Geocoder.Debug || cfg.Server.Environment == "development" {
		geocoder.SetDebug(true)
	}

	runner := scraper.NewRunner(scraper.Config{
		Command: cfg.Scraper.Command,
		Args:    cfg.Scraper.Args,
		Timeout: cfg.Scraper.Timeout,
		Dir:     cfg.Scraper.Dir,
	}, recorder)

	filter, err := usecase.CompileCandidateFilter(cfg.Resolver.Filter)
	if err != nil {
		return fmt.Errorf("resolver filter: %w", err)
	}

	resolver := usecase.NewStoreResolver(geocoder, priceCache, runner, usecase.ResolverConfig{
		RequestTimeout:       cfg.Resolver.RequestTimeout,
		MaxConcurrentScrapes: cfg.Scraper.MaxConcurrent,
		ScrapeRetries:        cfg.Scraper.Retries,
		Scoring: usecase.ScoringConfig{
			AvailabilityMax:       cfg.Scoring.AvailabilityMax,
			PriceMax:              cfg.Scoring.PriceMax,
			DistanceMax:           cfg.Scoring.DistanceMax,
			PenaltyPerMissingItem: cfg.Scoring.PenaltyPerMissingItem,
			Scale:                 cfg.Scoring.Scale,
			NearKm:                cfg.Scoring.NearKm,
			MidKm:                 cfg.Scoring.MidKm,
			FarKm:                 cfg.Scoring.FarKm,
		},
		Filter: filter,
	}, recorder)

	handler := httpDelivery.NewHandler(resolver)
	router := httpDelivery.SetupRouter(cfg, handler, registry, recorder)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// a resolve may run for the full request timeout
		WriteTimeout: cfg.Resolver.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info(ctx, "server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openPriceCache builds the configured cache. The returned closer releases
// its resources.
func openPriceCache(ctx context.Context, cfg config.CacheConfig) (domain.PriceCache, io.Closer, error) {
	switch cfg.Type {
	case "postgres":
		pool, err := cache.OpenPool(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.SimpleProtocol)
		if err != nil {
			return nil, nil, err
		}
		pg := cache.NewPostgresPriceCache(pool, cfg.Table, cfg.TTL)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, closerFunc(func() error { pool.Close(); return nil }), nil
	default:
		mc := cache.NewMemoryPriceCache(cfg.TTL)
		return mc, mc, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
